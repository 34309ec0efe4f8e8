package validation

import (
	"testing"

	"github.com/google/uuid"
)

type leg struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
}

type request struct {
	CompanyID uuid.UUID `json:"company_id" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=DAILY WEEKLY"`
	Minutes   int       `json:"minutes" validate:"gte=0,lte=1440"`
	Legs      []leg     `json:"legs" validate:"min=1,dive"`
}

func TestStruct(t *testing.T) {
	valid := request{CompanyID: uuid.New(), Kind: "DAILY", Legs: []leg{{ServiceID: uuid.New()}}}

	tests := []struct {
		name   string
		mutate func(r *request)
		want   string
	}{
		{name: "valid", mutate: func(r *request) {}, want: ""},
		{name: "missing uuid", mutate: func(r *request) { r.CompanyID = uuid.Nil }, want: "company_id is required"},
		{name: "bad enum", mutate: func(r *request) { r.Kind = "HOURLY" }, want: "kind must be one of DAILY WEEKLY"},
		{name: "negative", mutate: func(r *request) { r.Minutes = -1 }, want: "minutes must be greater than or equal to 0"},
		{name: "empty list", mutate: func(r *request) { r.Legs = nil }, want: "legs must contain at least 1 item(s)"},
		{name: "nested", mutate: func(r *request) { r.Legs = []leg{{}} }, want: "legs[0].service_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Legs = append([]leg(nil), valid.Legs...)
			tt.mutate(&r)
			if got := Struct(r); got != tt.want {
				t.Fatalf("Struct() = %q, want %q", got, tt.want)
			}
		})
	}
}
