package ws

// ClientMsg é a mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// GroupID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId"`
}

// ServerMsg cobre as respostas de controle (pong, subscribed, error)
type ServerMsg struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId,omitempty"`
	Error   string `json:"error,omitempty"`
}
