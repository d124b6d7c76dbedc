package natsadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
)

// PositionMessage is the IoT gateway wire format for one reading.
type PositionMessage struct {
	BusID          int64      `json:"bus_id" validate:"required,gt=0"`
	Lat            float64    `json:"lat" validate:"latitude"`
	Lon            float64    `json:"lon" validate:"longitude"`
	PassengerCount *int       `json:"passenger_count,omitempty" validate:"omitempty,gte=0"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// Update converts the wire message to a domain update.
func (m PositionMessage) Update() domain.PositionUpdate {
	u := domain.PositionUpdate{
		VehicleID:      m.BusID,
		Location:       domain.GeoPoint{Lat: m.Lat, Lng: m.Lon},
		PassengerCount: m.PassengerCount,
	}
	if m.Timestamp != nil {
		u.Timestamp = *m.Timestamp
	}
	return u
}

// DecodePositionMessages accepts a single object or an array of objects.
func DecodePositionMessages(data []byte) ([]PositionMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty position payload")
	}

	if data[0] == '[' {
		var msgs []PositionMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("decode position batch: %w", err)
		}
		return msgs, nil
	}

	var msg PositionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return []PositionMessage{msg}, nil
}

// DecodePositions decodes a feed payload into domain updates.
func DecodePositions(data []byte) ([]domain.PositionUpdate, error) {
	msgs, err := DecodePositionMessages(data)
	if err != nil {
		return nil, err
	}
	updates := make([]domain.PositionUpdate, len(msgs))
	for i, m := range msgs {
		updates[i] = m.Update()
	}
	return updates, nil
}

// EncodePositions encodes updates as a JSON array in the wire format.
func EncodePositions(updates []domain.PositionUpdate) ([]byte, error) {
	msgs := make([]PositionMessage, len(updates))
	for i, u := range updates {
		msgs[i] = PositionMessage{
			BusID:          u.VehicleID,
			Lat:            u.Location.Lat,
			Lon:            u.Location.Lng,
			PassengerCount: u.PassengerCount,
		}
		if !u.Timestamp.IsZero() {
			ts := u.Timestamp
			msgs[i].Timestamp = &ts
		}
	}
	return json.Marshal(msgs)
}
