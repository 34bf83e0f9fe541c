// Package event decodes the alarm that triggers an auto-heal invocation into
// the single target group it concerns.
//
// CloudWatch reports the target group as an alarm dimension in the short form
// "targetgroup/<name>/<id>". The decoder expands it to the full ARN that
// DescribeTargetHealth expects whenever the envelope carries a region and an
// account id.
package event
