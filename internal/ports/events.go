package ports

type EventBus interface {
	Publish(topic string, payload []byte)
	// Subscribe sans argument reçoit tout; avec des préfixes de topic
	// ("batch.", "upload."), seulement les événements qui en portent un.
	Subscribe(topicPrefixes ...string) (ch <-chan Event, cancel func())
}

type Event struct {
	Topic   string
	Payload []byte
}
