package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidCoordinate = errors.New("coordinates must be integers")

type ChatMessageData struct {
	Message string `json:"message"`
}

type CreateRoomData struct {
	Name string `json:"name"`
}

type SetNameData struct {
	Name string `json:"name"`
}

type MoveData struct {
	X Coordinate `json:"x"`
	Y Coordinate `json:"y"`
}

// Coordinate accepts both JSON numbers and numeric strings.
type Coordinate struct {
	raw string
	set bool
}

func (that *Coordinate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to unmarshal coordinate: %w", err)
		}
	}

	that.raw = strings.TrimSpace(raw)
	that.set = true

	return nil
}

func (that Coordinate) Int() (int, error) {
	if !that.set {
		return 0, fmt.Errorf("%w: value is missing", ErrInvalidCoordinate)
	}

	value, err := strconv.Atoi(that.raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, that.raw)
	}

	return value, nil
}

// Coordinates returns both axes as integers.
func (that MoveData) Coordinates() (int, int, error) {
	x, err := that.X.Int()
	if err != nil {
		return 0, 0, err
	}

	y, err := that.Y.Int()
	if err != nil {
		return 0, 0, err
	}

	return x, y, nil
}
