// Package proto holds the wire types shared with edge daemons over the
// remote tool-execution gRPC channel. RiskLevel is hand-authored rather than
// protoc-generated for now, but follows the same enum-naming convention
// (TYPE_VALUE) so a future .proto definition can replace it without
// changing call sites.
package proto

// RiskLevel classifies how dangerous a tool invocation is judged to be,
// driving the edge approval workflow's auto-approve and rate-limit rules.
type RiskLevel int32

const (
	RiskLevel_RISK_LEVEL_UNSPECIFIED RiskLevel = 0
	RiskLevel_RISK_LEVEL_LOW         RiskLevel = 1
	RiskLevel_RISK_LEVEL_MEDIUM      RiskLevel = 2
	RiskLevel_RISK_LEVEL_HIGH        RiskLevel = 3
	RiskLevel_RISK_LEVEL_CRITICAL    RiskLevel = 4
)

var riskLevelNames = map[RiskLevel]string{
	RiskLevel_RISK_LEVEL_UNSPECIFIED: "RISK_LEVEL_UNSPECIFIED",
	RiskLevel_RISK_LEVEL_LOW:         "RISK_LEVEL_LOW",
	RiskLevel_RISK_LEVEL_MEDIUM:      "RISK_LEVEL_MEDIUM",
	RiskLevel_RISK_LEVEL_HIGH:        "RISK_LEVEL_HIGH",
	RiskLevel_RISK_LEVEL_CRITICAL:    "RISK_LEVEL_CRITICAL",
}

func (r RiskLevel) String() string {
	if name, ok := riskLevelNames[r]; ok {
		return name
	}
	return "RISK_LEVEL_UNKNOWN"
}
