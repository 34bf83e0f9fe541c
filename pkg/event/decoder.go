package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/cuemby/autoheal/pkg/types"
)

// TargetGroupDimension is the CloudWatch dimension naming the target group
const TargetGroupDimension = "TargetGroup"

// envelope probes the payload for the fields that identify its shape
type envelope struct {
	Records    json.RawMessage `json:"Records"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
	Trigger    json.RawMessage `json:"Trigger"`
	Type       string          `json:"Type"`
	Message    string          `json:"Message"`
}

// alarmStateChange is the detail of an EventBridge "CloudWatch Alarm State Change" event
type alarmStateChange struct {
	AlarmName string `json:"alarmName"`
	State     struct {
		Value string `json:"value"`
	} `json:"state"`
	Configuration struct {
		Metrics []struct {
			MetricStat struct {
				Metric struct {
					Dimensions map[string]string `json:"dimensions"`
				} `json:"metric"`
			} `json:"metricStat"`
		} `json:"metrics"`
	} `json:"configuration"`
}

type snsDimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// alarmNotification is the CloudWatch alarm message delivered through SNS
type alarmNotification struct {
	AlarmName     string `json:"AlarmName"`
	AWSAccountID  string `json:"AWSAccountId"`
	NewStateValue string `json:"NewStateValue"`
	AlarmArn      string `json:"AlarmArn"`
	Trigger       struct {
		Dimensions []snsDimension `json:"Dimensions"`
		Metrics    []struct {
			MetricStat struct {
				Metric struct {
					Dimensions []snsDimension `json:"Dimensions"`
				} `json:"Metric"`
			} `json:"MetricStat"`
		} `json:"Metrics"`
	} `json:"Trigger"`
}

// Decode extracts the alarm, and with it the single target group, from a
// trigger payload. Accepted shapes are an EventBridge alarm state change, a
// Lambda SNS event, an SNS HTTP notification, or a bare CloudWatch alarm
// notification. Anything else is a MalformedEventError.
func Decode(payload []byte) (*types.Alarm, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, types.NewMalformedEvent("payload is not a JSON object: %v", err)
	}

	switch {
	case len(env.Records) > 0:
		return decodeSNSEvent(payload)
	case len(env.Detail) > 0:
		return decodeEventBridge(payload)
	case env.Type == "Notification" && env.Message != "":
		return DecodeAlarmNotification([]byte(env.Message))
	case len(env.Trigger) > 0:
		return DecodeAlarmNotification(payload)
	default:
		return nil, types.NewMalformedEvent("unrecognized payload: no detail, Records or Trigger")
	}
}

func decodeEventBridge(payload []byte) (*types.Alarm, error) {
	var cwEvent events.CloudWatchEvent
	if err := json.Unmarshal(payload, &cwEvent); err != nil {
		return nil, types.NewMalformedEvent("invalid EventBridge event: %v", err)
	}

	var detail alarmStateChange
	if err := json.Unmarshal(cwEvent.Detail, &detail); err != nil {
		return nil, types.NewMalformedEvent("invalid alarm detail: %v", err)
	}

	if len(detail.Configuration.Metrics) == 0 {
		return nil, types.NewMalformedEvent("detail.configuration.metrics is empty")
	}

	var found []string
	for _, m := range detail.Configuration.Metrics {
		if tg, ok := m.MetricStat.Metric.Dimensions[TargetGroupDimension]; ok {
			found = append(found, tg)
		}
	}

	tg, err := singleTargetGroup(found)
	if err != nil {
		return nil, err
	}

	return &types.Alarm{
		Name:        detail.AlarmName,
		State:       detail.State.Value,
		Region:      cwEvent.Region,
		AccountID:   cwEvent.AccountID,
		TargetGroup: ExpandTargetGroupARN(tg, cwEvent.Region, cwEvent.AccountID),
	}, nil
}

func decodeSNSEvent(payload []byte) (*types.Alarm, error) {
	var snsEvent events.SNSEvent
	if err := json.Unmarshal(payload, &snsEvent); err != nil {
		return nil, types.NewMalformedEvent("invalid SNS event: %v", err)
	}
	if len(snsEvent.Records) != 1 {
		return nil, types.NewMalformedEvent("expected exactly one SNS record, got %d", len(snsEvent.Records))
	}
	return DecodeAlarmNotification([]byte(snsEvent.Records[0].SNS.Message))
}

// DecodeAlarmNotification decodes the CloudWatch alarm message carried in an
// SNS notification body.
func DecodeAlarmNotification(message []byte) (*types.Alarm, error) {
	var n alarmNotification
	if err := json.Unmarshal(message, &n); err != nil {
		return nil, types.NewMalformedEvent("alarm message is not JSON: %v", err)
	}

	var found []string
	for _, d := range n.Trigger.Dimensions {
		if d.Name == TargetGroupDimension {
			found = append(found, d.Value)
		}
	}
	// Metric math alarms carry dimensions per query instead
	for _, m := range n.Trigger.Metrics {
		for _, d := range m.MetricStat.Metric.Dimensions {
			if d.Name == TargetGroupDimension {
				found = append(found, d.Value)
			}
		}
	}

	tg, err := singleTargetGroup(found)
	if err != nil {
		return nil, err
	}

	// The notification's Region is a display name; the ARN carries the code
	region := regionFromARN(n.AlarmArn)
	return &types.Alarm{
		Name:        n.AlarmName,
		State:       n.NewStateValue,
		Region:      region,
		AccountID:   n.AWSAccountID,
		TargetGroup: ExpandTargetGroupARN(tg, region, n.AWSAccountID),
	}, nil
}

// singleTargetGroup enforces one target group per alert
func singleTargetGroup(values []string) (string, error) {
	distinct := make(map[string]struct{})
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			distinct[v] = struct{}{}
		}
	}

	switch len(distinct) {
	case 0:
		return "", types.NewMalformedEvent("no %s dimension in alarm metrics", TargetGroupDimension)
	case 1:
		for v := range distinct {
			return v, nil
		}
	}

	names := make([]string, 0, len(distinct))
	for v := range distinct {
		names = append(names, v)
	}
	sort.Strings(names)
	return "", types.NewMalformedEvent("alarm references %d target groups (%s); only one is supported",
		len(names), strings.Join(names, ", "))
}

// ExpandTargetGroupARN turns the CloudWatch dimension form
// "targetgroup/<name>/<id>" into a full ARN. Values already in ARN form, or
// dimension values without region and account to expand with, are returned
// unchanged.
func ExpandTargetGroupARN(value, region, accountID string) string {
	if strings.HasPrefix(value, "arn:") {
		return value
	}
	if !strings.HasPrefix(value, "targetgroup/") || region == "" || accountID == "" {
		return value
	}
	return fmt.Sprintf("arn:%s:elasticloadbalancing:%s:%s:%s", partitionFor(region), region, accountID, value)
}

func partitionFor(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

// regionFromARN returns the region field of an ARN, or "" if it has none
func regionFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 || parts[0] != "arn" {
		return ""
	}
	return parts[3]
}
