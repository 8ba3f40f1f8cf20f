package transfer

import "time"

// ScheduleRequest schedules one post at an explicit instant.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Platforms   []string  `json:"platforms" validate:"required,min=1,unique,dive,oneof=twitter linkedin facebook instagram"`
}

// RuleInput is an inline cadence, used when no saved rule is referenced.
type RuleInput struct {
	Type string `json:"type" validate:"required,oneof=daily weekdays weekends custom"`
	Time string `json:"time" validate:"required"`
	Days []int  `json:"days" validate:"omitempty,unique,dive,min=0,max=6"`
}

type BulkScheduleRequest struct {
	PostIDs   []int64    `json:"post_ids" validate:"required,min=1,max=365,unique,dive,gt=0"`
	RuleID    *int64     `json:"rule_id" validate:"omitempty,gt=0"`
	Rule      *RuleInput `json:"rule" validate:"required_without=RuleID"`
	StartDate string     `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Timezone  string     `json:"timezone" validate:"omitempty,timezone"`
	Platforms []string   `json:"platforms" validate:"omitempty,unique,dive,oneof=twitter linkedin facebook instagram"`
}

type PreviewRequest struct {
	Rule      RuleInput `json:"rule" validate:"required"`
	StartDate string    `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Count     int       `json:"count" validate:"required,min=1,max=365"`
	Timezone  string    `json:"timezone" validate:"omitempty,timezone"`
}

type PreviewResponse struct {
	Slots []time.Time `json:"slots"`
}

type RuleRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Type     string `json:"type" validate:"required,oneof=daily weekdays weekends custom"`
	Time     string `json:"time" validate:"required"`
	Days     []int  `json:"days" validate:"omitempty,unique,dive,min=0,max=6"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
	Active   *bool  `json:"active"`
}

type CreditsResponse struct {
	Balance          int       `json:"balance"`
	MonthlyAllotment int       `json:"monthly_allotment"`
	LastResetDate    time.Time `json:"last_reset_date"`
}

type TimezoneUpdate struct {
	Timezone string `json:"timezone" validate:"required,timezone"`
}
