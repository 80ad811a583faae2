package models

import "time"

// Document is a schemaless record: identity columns plus the field set as a
// JSON value. Owner mirrors the owner field for indexed scans.
type Document struct {
	Collection string    `json:"collection" gorm:"primaryKey;type:text"`
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	Owner      string    `json:"owner" gorm:"type:text;index"`
	Value      string    `json:"value" gorm:"type:jsonb"`
	CDate      time.Time `json:"cdate" gorm:"autoCreateTime;index"`
}

// Edge is a relation row. The composite primary key is the uniqueness
// constraint the toggle engine's insert-first protocol relies on.
type Edge struct {
	Subject string    `json:"subject" gorm:"primaryKey;type:text"`
	Object  string    `json:"object" gorm:"primaryKey;type:text;index"`
	Kind    string    `json:"kind" gorm:"primaryKey;type:text"`
	ID      string    `json:"id" gorm:"type:text;uniqueIndex"`
	CDate   time.Time `json:"cdate" gorm:"autoCreateTime"`
}
