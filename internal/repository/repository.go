package repository

import (
	"context"
	"errors"
	"time"

	"github.com/terraguard/climate-alerts/internal/models"
)

var ErrNotFound = errors.New("not found")

// AlertFilter narrows ListActive results.
type AlertFilter struct {
	Region string // empty matches all regions
	Limit  int    // 0 means no limit
}

// UpsertResult reports what UpsertFromAssessment decided for the tuple.
type UpsertResult struct {
	Alert *models.Alert
	// Created is true when a new row was inserted (fresh alert or
	// supersession). False means the call was suppressed by an unchanged
	// active alert.
	Created bool
	// Superseded holds the previously active alert that was expired because
	// the severity changed, nil otherwise.
	Superseded *models.Alert
}

type AlertRepository interface {
	// UpsertFromAssessment atomically applies the dedup rule for
	// (region, hazard): suppress on unchanged severity, supersede on changed
	// severity, create when no active alert exists.
	UpsertFromAssessment(ctx context.Context, draft models.AlertDraft) (UpsertResult, error)
	ListActive(ctx context.Context, f AlertFilter) ([]models.Alert, error)
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	// ExpireOverdue transitions active alerts whose expiry has passed.
	// Idempotent; returns the number of rows transitioned.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type SubscriberRepository interface {
	// Upsert creates or updates a subscriber keyed by its channel identity
	// (telegram id or phone number). Never produces duplicate rows for the
	// same identity.
	Upsert(ctx context.Context, s *models.Subscriber) (*models.Subscriber, error)
	ListSubscribed(ctx context.Context, region string) ([]models.Subscriber, error)
	// DistinctRegions lists regions that have at least one subscribed user.
	DistinctRegions(ctx context.Context) ([]string, error)
	SetSubscribed(ctx context.Context, id string, subscribed bool) error
}

type DispatchRepository interface {
	// Record appends one delivery attempt. Rows are never updated.
	Record(ctx context.Context, r *models.DispatchRecord) error
	// Delivered reports whether a delivered record already exists for the
	// (alert, subscriber, channel) triple.
	Delivered(ctx context.Context, alertID, subscriberID string, channel models.Channel) (bool, error)
}
