package correlator

import (
	"sort"

	"github.com/cuemby/autoheal/pkg/types"
)

// key is the join key between a target and an attachment. Port 0 means the
// address belongs to the instance on every port (awsvpc networking).
type key struct {
	address string
	port    int
}

// Index maps network addresses to the running instances that own them.
// Built once per invocation, probed once per bad target.
type Index struct {
	owners map[key][]string
}

// BuildIndex indexes every address of every interface attachment. Instances
// without interface attachments are not indexed and can never match.
func BuildIndex(instances []types.RunningInstance) *Index {
	idx := &Index{owners: make(map[key][]string)}

	for _, inst := range instances {
		for _, att := range inst.Attachments {
			if att.Kind != types.AttachmentInterface {
				continue
			}
			for _, addr := range att.Addresses {
				if addr.Value == "" {
					continue
				}
				if len(att.Ports) == 0 {
					idx.add(key{address: addr.Value}, inst.InstanceID)
					continue
				}
				for _, port := range att.Ports {
					idx.add(key{address: addr.Value, port: port}, inst.InstanceID)
				}
			}
		}
	}
	return idx
}

func (idx *Index) add(k key, instanceID string) {
	for _, existing := range idx.owners[k] {
		if existing == instanceID {
			return
		}
	}
	idx.owners[k] = append(idx.owners[k], instanceID)
}

// Size returns the number of indexed keys
func (idx *Index) Size() int {
	return len(idx.owners)
}

// Lookup resolves a target to its owning instance. The exact (address, port)
// key is tried first, then the whole-address key. When more than one instance
// owns the matching key no owner is returned and the conflict is reported.
func (idx *Index) Lookup(address string, port int) (string, *types.DataInconsistency, bool) {
	candidates := []key{{address: address}}
	if port != 0 {
		candidates = []key{{address: address, port: port}, {address: address}}
	}

	for _, k := range candidates {
		owners, ok := idx.owners[k]
		if !ok {
			continue
		}
		if len(owners) == 1 {
			return owners[0], nil, true
		}
		ids := append([]string(nil), owners...)
		sort.Strings(ids)
		return "", &types.DataInconsistency{Address: k.address, Port: k.port, InstanceIDs: ids}, false
	}
	return "", nil, false
}
