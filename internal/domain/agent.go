package domain

// AgentRecord an API agent credential approved by a wallet owner. The private
// key never leaves the local machine; it only signs order payloads.
type AgentRecord struct {
	// OwnerAddress wallet address the agent acts for.
	OwnerAddress string `json:"owner_address"`
	// AgentName label the agent was approved under.
	AgentName string `json:"agent_name"`
	// PrivateKey hex-encoded agent signing key (0x-prefixed or bare).
	PrivateKey string `json:"private_key"`
}
