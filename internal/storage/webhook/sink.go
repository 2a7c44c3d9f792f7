package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/taoyao-code/dtu-gateway/internal/storage"
)

// EventReading 推送的事件名
const EventReading = "dtu.reading"

// Event 回调正文
type Event struct {
	Event     string            `json:"event"`
	DTU       string            `json:"dtuNo"`
	Timestamp int64             `json:"timestamp"`
	Data      string            `json:"data"`
	Registers map[string]uint16 `json:"registers,omitempty"`
}

// NewEvent 由上行数据构建事件，寄存器偏移转为字符串键
func NewEvent(r storage.Reading) Event {
	ev := Event{
		Event:     EventReading,
		DTU:       r.DTU,
		Timestamp: r.ReceivedAt.UnixMilli(),
		Data:      r.RawHex,
	}
	if len(r.Registers) > 0 {
		ev.Registers = make(map[string]uint16, len(r.Registers))
		for k, v := range r.Registers {
			ev.Registers[strconv.Itoa(k)] = v
		}
	}
	return ev
}

// Sink 实现 storage.Sink，把每条上行数据推送到 URL
type Sink struct {
	URL    string
	Pusher *Pusher
}

func (s *Sink) Save(ctx context.Context, r storage.Reading) error {
	body, err := json.Marshal(NewEvent(r))
	if err != nil {
		return err
	}
	if err := s.Pusher.Post(ctx, s.URL, body); err != nil {
		return fmt.Errorf("push reading for %s: %w", r.DTU, err)
	}
	return nil
}
