package transport

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Message struct {
	Id         string
	CreateTime time.Time
	Event      string
	Payload    any
}

func NewMessage(event string, payload any) Message {
	return Message{
		Id:         gonanoid.Must(),
		CreateTime: time.Now(),
		Event:      event,
		Payload:    payload,
	}
}
