package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawReportRow is one metric line as reported by the network.
// Rows have no identity of their own: the set for a (Day, SdkKey) pair is
// replaced wholesale on every run.
type RawReportRow struct {
	ID          int64   `gorm:"primaryKey;autoIncrement" json:"-"`
	Day         string  `gorm:"type:varchar(10);index:idx_report_applovin_partition" json:"day"`
	Hour        string  `gorm:"type:varchar(8)" json:"hour"`
	Country     string  `gorm:"type:varchar(8)" json:"country"`
	Platform    string  `gorm:"type:varchar(32)" json:"platform"`
	Application string  `gorm:"type:varchar(256)" json:"application"`
	PackageName string  `gorm:"type:varchar(256)" json:"package_name"`
	Placement   string  `gorm:"type:varchar(256)" json:"placement"`
	AdType      string  `gorm:"type:varchar(32)" json:"ad_type"`
	DeviceType  string  `gorm:"type:varchar(32)" json:"device_type"`
	IsHidden    string  `gorm:"column:application_is_hidden;type:varchar(8)" json:"application_is_hidden"`
	Zone        string  `gorm:"type:varchar(256)" json:"zone"`
	ZoneID      string  `gorm:"type:varchar(128)" json:"zone_id"`
	Size        string  `gorm:"type:varchar(32)" json:"size"`
	Impressions *int64  `json:"impressions"`
	Clicks      *int64  `json:"clicks"`
	Ctr         float64 `gorm:"not null;default:0" json:"ctr"`
	Revenue     float64 `gorm:"not null;default:0" json:"revenue"`
	Ecpm        float64 `gorm:"not null;default:0" json:"ecpm"`
	SdkKey      string  `gorm:"type:varchar(128);index:idx_report_applovin_partition" json:"sdk_key"`
}

// TableName returns the database table name for RawReportRow.
func (RawReportRow) TableName() string {
	return "report_applovin"
}

// ReportAggregate is one (day, hour, country, platform, data key) group of
// raw rows. DataKey is the zone id when present, otherwise the package name.
type ReportAggregate struct {
	Day         string
	Hour        string
	Country     string
	Platform    string
	DataKey     string
	Impressions int64
	Clicks      int64
	Revenue     float64
}

// LinkedReportRow is an aggregated report row resolved to an internal
// instance, the only shape fed to downstream aggregation.
type LinkedReportRow struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	Day         string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_linked_group;index:idx_linked_partition" json:"day"`
	Hour        string          `gorm:"type:varchar(2);not null;uniqueIndex:idx_linked_group" json:"hour"`
	Country     string          `gorm:"type:varchar(8);not null;uniqueIndex:idx_linked_group" json:"country"`
	Platform    string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_linked_group" json:"platform"`
	InstanceID  int64           `gorm:"not null;uniqueIndex:idx_linked_group" json:"instance_id"`
	AdnID       int             `gorm:"not null;default:0;index:idx_linked_partition" json:"adn_id"`
	AdnAppKey   string          `gorm:"type:varchar(128);index:idx_linked_partition" json:"adn_app_key"`
	PubAppID    int64           `json:"pub_app_id"`
	PlacementID int64           `json:"placement_id"`
	Impressions int64           `gorm:"not null;default:0" json:"impressions"`
	Clicks      int64           `gorm:"not null;default:0" json:"clicks"`
	Revenue     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"revenue"`
	TaskID      int64           `json:"task_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name for LinkedReportRow.
func (LinkedReportRow) TableName() string {
	return "report_adnetwork_linked"
}

// GroupKey identifies the row within its partition.
type GroupKey struct {
	Day        string
	Hour       string
	Country    string
	Platform   string
	InstanceID int64
}

// Key returns the group identity of the row.
func (r *LinkedReportRow) Key() GroupKey {
	return GroupKey{
		Day:        r.Day,
		Hour:       r.Hour,
		Country:    r.Country,
		Platform:   r.Platform,
		InstanceID: r.InstanceID,
	}
}
