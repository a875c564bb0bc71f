package event

// Message is the payload pushed to subscribed clients when the round
// lifecycle moves.
type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=Publisher
type Publisher interface {
	TriggerEvent(m Message) error
}
