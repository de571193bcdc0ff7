package structs

// DistributedAttributePrefix is the only attribute prefix a node agent is
// allowed to author (§4.9). Attributes with any other prefix are rejected
// wholesale.
const DistributedAttributePrefix = "nts.distributed"

// NodeAttribute is a single node-authored (or centrally configured)
// key/value/prefix tag.
type NodeAttribute struct {
	Prefix string
	Name   string
	Value  string
}

// LabelConfigMode selects which of the two mutually exclusive label
// propagation strategies (§4.9) is active.
type LabelConfigMode string

const (
	LabelConfigDistributed          LabelConfigMode = "DISTRIBUTED"
	LabelConfigDelegatedCentralized LabelConfigMode = "DELEGATED_CENTRALIZED"
)
