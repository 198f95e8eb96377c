// Package domain defines the persistence models for directory listings and
// the category collection. These types are mapped with GORM and form the
// core data layer of the JoinGroups directory.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Kind separates the two collections served by the directory.
type Kind string

const (
	// KindGroup covers Telegram and WhatsApp groups/channels ("groups").
	KindGroup Kind = "group"
	// KindClan covers game clans ("clanes").
	KindClan Kind = "clan"
)

// Language slots of a listing description.
const (
	LangES = "es"
	LangEN = "en"
)

// Content flag values (adult-content self declaration).
const (
	ContentYes = "yes"
	ContentNo  = "no"
)

// Listing is a submitted group, channel, or clan.
//
// Fields:
//   - ID: UUID primary key assigned at creation.
//   - Slug / Link: unique across all rows (unique indexes close the
//     check-then-insert race of the submission workflow).
//   - DescriptionES / DescriptionEN: the two language slots; one of them may be
//     empty until the back-fill worker patches it.
//   - LegacyDescription: single-string description carried by historical rows.
//   - TranslationPending: true while a slot is still waiting for back-fill.
//   - Featured / ViewCount: mutated only by the admin toggle and the detail view.
type Listing struct {
	ID                 string                      `json:"id"                  gorm:"type:char(36);primaryKey"`
	Kind               Kind                        `json:"kind"                gorm:"type:varchar(16);not null;index:idx_listings_kind_network,priority:1"`
	Network            Network                     `json:"network"             gorm:"type:varchar(32);not null;index:idx_listings_kind_network,priority:2"`
	Name               string                      `json:"name"                gorm:"type:varchar(255);not null"`
	Slug               string                      `json:"slug"                gorm:"type:varchar(255);not null;uniqueIndex:ux_listings_slug"`
	Link               string                      `json:"link"                gorm:"type:varchar(512);not null;uniqueIndex:ux_listings_link"`
	DescriptionES      string                      `json:"description_es"      gorm:"type:text;not null;default:''"`
	DescriptionEN      string                      `json:"description_en"      gorm:"type:text;not null;default:''"`
	LegacyDescription  string                      `json:"-"                   gorm:"type:text;not null;default:''"`
	TranslationPending bool                        `json:"translation_pending" gorm:"not null;default:false"`
	Categories         datatypes.JSONSlice[string] `json:"categories"`
	ContentFlag        string                      `json:"content_flag"        gorm:"type:varchar(8);not null;default:'no'"`
	City               string                      `json:"city,omitempty"      gorm:"type:varchar(8)"`
	Email              string                      `json:"-"                   gorm:"type:varchar(255)"`
	Featured           bool                        `json:"featured"            gorm:"not null;default:false;index"`
	ViewCount          int64                       `json:"view_count"          gorm:"not null;default:0"`
	CreatedAt          time.Time                   `json:"created_at"          gorm:"index"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Listing.
func (Listing) TableName() string { return "listings" }

// Description returns the text stored in the given language slot.
func (l *Listing) Description(lang string) string {
	switch lang {
	case LangES:
		return l.DescriptionES
	case LangEN:
		return l.DescriptionEN
	}
	return ""
}

// CategoryTag is one entry of the known-tag collection served to clients
// for the category filter.
type CategoryTag struct {
	Name      string    `json:"name"       gorm:"type:varchar(64);primaryKey"`
	Version   int       `json:"version"    gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for CategoryTag.
func (CategoryTag) TableName() string { return "category_tags" }
