package models

// AttackType names a simulated attack and the remediation that answers it.
type AttackType string

const (
	AttackSQLInjection AttackType = "sql_injection"
	AttackDDoS         AttackType = "ddos_simulation"
	AttackBruteForce   AttackType = "brute_force"
)

// KnownAttackTypes lists the attack types the simulator and remediator understand.
func KnownAttackTypes() []AttackType {
	return []AttackType{AttackSQLInjection, AttackDDoS, AttackBruteForce}
}

// RemediationRequest is the body of POST /blue/remediate.
type RemediationRequest struct {
	AttackType AttackType `json:"attack_type" binding:"required,max=64"`
}

// RemediationAck is returned by POST /blue/remediate. Callers are free to ignore it.
type RemediationAck struct {
	ID         string     `json:"id,omitempty"`
	AttackType AttackType `json:"attack_type,omitempty"`
	Action     string     `json:"action"`
}

// SimulationRequest is the body of POST /red/simulate.
type SimulationRequest struct {
	AttackType AttackType `json:"attack_type" binding:"required,max=64"`
}

// SimulationResult describes the outcome of a simulated attack.
type SimulationResult struct {
	Attack             AttackType `json:"attack"`
	Result             string     `json:"result"`
	SuccessProbability float64    `json:"success_probability"`
}

// Port states reported by the scanner.
const (
	PortOpen   = "OPEN"
	PortClosed = "CLOSED"
	PortError  = "ERROR"
)

// ScanRequest is the body of POST /red/scan.
type ScanRequest struct {
	TargetIP string `json:"target_ip" binding:"required,max=253"`
	Ports    []int  `json:"ports" binding:"required,min=1,dive,min=1,max=65535"`
}

// PortResult is one scanned port.
type PortResult struct {
	Port    int    `json:"port"`
	State   string `json:"state"`
	Service string `json:"service,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GroverResult is the mock Grover's search response.
type GroverResult struct {
	Algorithm             string             `json:"algorithm"`
	Qubits                int                `json:"qubits"`
	SearchSpaceSize       int                `json:"search_space_size"`
	TargetThreatSignature string             `json:"target_threat_signature"`
	Iterations            int                `json:"iterations"`
	MeasurementResults    map[string]float64 `json:"measurement_results"`
	CollapsedState        string             `json:"collapsed_state"`
}

// EntropyResult is returned by GET /quantum/entropy.
type EntropyResult struct {
	EntropyScore float64 `json:"entropy_score"`
}
