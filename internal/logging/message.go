package logging

import (
	"time"
)

// Message is a single recorded log line.
type Message struct {
	ID         string
	Time       time.Time
	Level      string
	Message    string `json:"msg"`
	Attributes []Attr
}

type Attr struct {
	Key   string
	Value string
}
