package model

import (
	"fmt"
	"time"
)

// HeldKind classifies a held record for restore dispatch.
type HeldKind string

const (
	KindPayment            HeldKind = "payment"
	KindUser               HeldKind = "user"
	KindProject            HeldKind = "project"
	KindOther              HeldKind = "other"
	KindYearConfigRemoved  HeldKind = "year_config_removed"
	KindMonthConfigRemoved HeldKind = "month_config_removed"
)

func (k HeldKind) Valid() bool {
	switch k {
	case KindPayment, KindUser, KindProject, KindOther, KindYearConfigRemoved, KindMonthConfigRemoved:
		return true
	}
	return false
}

func ParseHeldKind(s string) (HeldKind, error) {
	k := HeldKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown held kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// HeldRecord is one entry of the recycle bin: a snapshot of a deleted record
// plus the provenance needed to put it back.
type HeldRecord struct {
	ID                 string         `json:"id"`
	OriginalID         string         `json:"originalId"`
	OriginalCollection string         `json:"originalCollection"`
	Snapshot           map[string]any `json:"snapshot"`
	DeletedAt          time.Time      `json:"deletedAt"`
	DeletedBy          string         `json:"deletedBy"`
	Kind               HeldKind       `json:"kind"`
	DisplayName        string         `json:"displayName"`
	BatchID            string         `json:"batchId,omitempty"`
}

// HeldItemView is a HeldRecord as shown to operators.
type HeldItemView struct {
	HeldRecord
	DaysRemaining int `json:"daysRemaining"`
}

// DaysRemaining counts whole days left before the sweep may remove a record
// deleted at deletedAt. It never goes below zero.
func DaysRemaining(deletedAt, now time.Time, retentionDays int) int {
	elapsed := int(now.Sub(deletedAt) / (24 * time.Hour))
	if now.Before(deletedAt) {
		elapsed = 0
	}
	remaining := retentionDays - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func NewHeldItemView(rec HeldRecord, now time.Time, retentionDays int) HeldItemView {
	return HeldItemView{HeldRecord: rec, DaysRemaining: DaysRemaining(rec.DeletedAt, now, retentionDays)}
}

type SoftDeleteRequest struct {
	Collection  string
	ID          string
	Kind        HeldKind
	DisplayName string
	DeletedBy   string
	BatchID     string
}

// RestoreResult reports what a restore put back.
type RestoreResult struct {
	HeldID         string   `json:"heldId"`
	Kind           HeldKind `json:"kind"`
	Restored       []string `json:"restored"`
	PurgedPayments []string `json:"purgedPayments,omitempty"`
	Reapplied      string   `json:"reapplied,omitempty"`
}

// Applied reports whether any restore step took effect.
func (r RestoreResult) Applied() bool {
	return len(r.Restored) > 0 || len(r.PurgedPayments) > 0 || r.Reapplied != ""
}
