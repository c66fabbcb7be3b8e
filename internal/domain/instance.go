package domain

import "time"

// Instance is the current binding of an internal ad-unit instance to a
// network placement.
type Instance struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	PubAppID     int64     `gorm:"not null;default:0" json:"pub_app_id"`
	PlacementID  int64     `gorm:"not null;default:0" json:"placement_id"`
	AdnID        int       `gorm:"not null;default:0" json:"adn_id"`
	AdnAppKey    string    `gorm:"type:varchar(128);index:idx_instances_adn_app_key" json:"adn_app_key"`
	AppID        string    `gorm:"type:varchar(256)" json:"app_id"`
	PlacementKey string    `gorm:"type:varchar(256)" json:"placement_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Instance.
func (Instance) TableName() string {
	return "instances"
}

// InstanceHistory records what an instance was bound to before one of its
// network keys was changed.
type InstanceHistory struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	InstanceID   int64     `gorm:"not null;index:idx_instance_histories_instance" json:"instance_id"`
	PubAppID     int64     `gorm:"not null;default:0" json:"pub_app_id"`
	PlacementID  int64     `gorm:"not null;default:0" json:"placement_id"`
	AdnID        int       `gorm:"not null;default:0" json:"adn_id"`
	AdnAppKey    string    `gorm:"type:varchar(128)" json:"adn_app_key"`
	AppID        string    `gorm:"type:varchar(256)" json:"app_id"`
	PlacementKey string    `gorm:"type:varchar(256)" json:"placement_key"`
	ChangedAt    time.Time `gorm:"not null" json:"changed_at"`
}

// TableName returns the database table name for InstanceHistory.
func (InstanceHistory) TableName() string {
	return "instance_histories"
}

// InstanceBinding is the instance metadata a report key resolves to.
type InstanceBinding struct {
	InstanceID   int64
	PubAppID     int64
	PlacementID  int64
	AdnID        int
	AdnAppKey    string
	AppID        string
	PlacementKey string
}

// Binding converts the current instance row to its binding.
func (i *Instance) Binding() InstanceBinding {
	return InstanceBinding{
		InstanceID:   i.ID,
		PubAppID:     i.PubAppID,
		PlacementID:  i.PlacementID,
		AdnID:        i.AdnID,
		AdnAppKey:    i.AdnAppKey,
		AppID:        i.AppID,
		PlacementKey: i.PlacementKey,
	}
}

// Binding converts the historical row to the binding it used to have.
func (h *InstanceHistory) Binding() InstanceBinding {
	return InstanceBinding{
		InstanceID:   h.InstanceID,
		PubAppID:     h.PubAppID,
		PlacementID:  h.PlacementID,
		AdnID:        h.AdnID,
		AdnAppKey:    h.AdnAppKey,
		AppID:        h.AppID,
		PlacementKey: h.PlacementKey,
	}
}

// PlacementMapping maps report keys (placement keys and app ids) to
// instance bindings. Keys keep their first inserted value; later inserts of
// the same key are ignored.
type PlacementMapping struct {
	entries map[string]InstanceBinding
	order   []string
}

// NewPlacementMapping creates an empty mapping.
func NewPlacementMapping() *PlacementMapping {
	return &PlacementMapping{entries: make(map[string]InstanceBinding)}
}

// PutIfAbsent stores b under key unless key is blank or already mapped.
// Returns true when the binding was stored.
func (m *PlacementMapping) PutIfAbsent(key string, b InstanceBinding) bool {
	if key == "" {
		return false
	}
	if _, ok := m.entries[key]; ok {
		return false
	}
	m.entries[key] = b
	m.order = append(m.order, key)
	return true
}

// Lookup returns the binding for key.
func (m *PlacementMapping) Lookup(key string) (InstanceBinding, bool) {
	b, ok := m.entries[key]
	return b, ok
}

// Len returns the number of mapped keys.
func (m *PlacementMapping) Len() int {
	return len(m.entries)
}

// Keys returns the mapped keys in insertion order.
func (m *PlacementMapping) Keys() []string {
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}
