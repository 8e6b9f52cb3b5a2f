package model

import "time"

// SmartFolder is a named saved search shown alongside real maildirs.
type SmartFolder struct {
	ID        string    `db:"id" json:"id"`
	Account   string    `db:"account" json:"account"`
	Name      string    `db:"name" json:"name"`
	Query     string    `db:"query" json:"query"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SyncState is the IMAP fetch watermark for one account mailbox.
type SyncState struct {
	Account     string    `db:"account"`
	Mailbox     string    `db:"mailbox"`
	UIDValidity uint32    `db:"uid_validity"`
	LastUID     uint32    `db:"last_uid"`
	SyncedAt    time.Time `db:"synced_at"`
}
