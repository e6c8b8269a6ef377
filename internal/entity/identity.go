package entity

const (
	anonymousPrefix   = "AnonymousUser_"
	anonymousTailSize = 6
)

// Identity is the stable id and display name of one logical client.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func NewIdentity(id, displayName string) Identity {
	if displayName == "" {
		displayName = AnonymousName(id)
	}

	return Identity{
		ID:          id,
		DisplayName: displayName,
	}
}

// AnonymousName derives a label from the tail of id.
func AnonymousName(id string) string {
	if len(id) <= anonymousTailSize {
		return anonymousPrefix + id
	}

	return anonymousPrefix + id[len(id)-anonymousTailSize:]
}

// Name returns the display name, falling back to the id.
func (that Identity) Name() string {
	if that.DisplayName != "" {
		return that.DisplayName
	}

	return that.ID
}

func (that Identity) IsZero() bool {
	return that.ID == ""
}
