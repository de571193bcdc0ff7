package nts

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/nodetracker/nts/structs"
)

// propagationResult is what §4.9 needs back at the call site: whether each
// of the (independent) label/attribute writes was accepted, and a combined
// diagnostic string to attach to the response on any failure.
type propagationResult struct {
	labelsAccepted     bool
	attributesAccepted bool
	diagnostics        string
}

// propagateLabelsAndAttributes implements §4.9 in full: the two mutually
// exclusive label modes, and the always-distributed attribute path with
// its prefix check and change-detection before writing.
func (s *Server) propagateLabelsAndAttributes(nodeID structs.NodeId, labels []string, attrs []structs.NodeAttribute) propagationResult {
	res := propagationResult{labelsAccepted: true, attributesAccepted: true}
	var errs []error

	switch s.Config.Snapshot().LabelMode {
	case structs.LabelConfigDistributed:
		if s.Labels != nil {
			if err := s.Labels.ReplaceLabelsOnNode(nodeID, labels); err != nil {
				res.labelsAccepted = false
				errs = append(errs, fmt.Errorf("labels: %w", err))
			}
		}
	case structs.LabelConfigDelegatedCentralized:
		if s.DelegatedLabels != nil {
			if err := s.DelegatedLabels.UpdateNodeLabels(nodeID); err != nil {
				res.labelsAccepted = false
				errs = append(errs, fmt.Errorf("labels: %w", err))
			}
		}
	}

	if err := s.replaceDistributedAttributes(nodeID, attrs); err != nil {
		res.attributesAccepted = false
		errs = append(errs, fmt.Errorf("attributes: %w", err))
	}

	if len(errs) > 0 {
		merged := errs[0]
		for _, e := range errs[1:] {
			merged = fmt.Errorf("%w; %v", merged, e)
		}
		res.diagnostics = merged.Error()
	}
	return res
}

// replaceDistributedAttributes rejects the whole batch if any attribute's
// prefix isn't the reserved distributed prefix, then writes only if the
// filtered incoming set actually differs from what's currently stored for
// this host (§4.9).
func (s *Server) replaceDistributedAttributes(nodeID structs.NodeId, attrs []structs.NodeAttribute) error {
	if s.Attributes == nil {
		return nil
	}
	for _, a := range attrs {
		if a.Prefix != structs.DistributedAttributePrefix {
			return fmt.Errorf("attribute %q has non-distributed prefix %q", a.Name, a.Prefix)
		}
	}

	current, err := s.Attributes.GetAttributesForNode(nodeID.Host)
	if err != nil {
		return err
	}

	if attributeSetsEqual(current, attrs) {
		return nil
	}

	return s.Attributes.ReplaceNodeAttributes(structs.DistributedAttributePrefix, map[string][]structs.NodeAttribute{
		nodeID.Host: attrs,
	})
}

func attributeSetsEqual(a, b []structs.NodeAttribute) bool {
	if len(a) != len(b) {
		return false
	}
	as := set.New[string](len(a))
	for _, x := range a {
		as.Insert(fmt.Sprintf("%s/%s=%s", x.Prefix, x.Name, x.Value))
	}
	bs := set.New[string](len(b))
	for _, x := range b {
		bs.Insert(fmt.Sprintf("%s/%s=%s", x.Prefix, x.Name, x.Value))
	}
	return as.Equal(bs)
}

// appIDSet converts a plain string slice into the set the registry and
// decommission watcher expect.
func appIDSet(ids []string) *set.Set[string] {
	return set.From(ids)
}
