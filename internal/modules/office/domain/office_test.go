package domain

import (
	"errors"
	"math"
	"testing"

	apperrors "geoattend/internal/platform/errors"
)

func sampleDirectory() Directory {
	return Directory{
		Offices: []Office{
			{ID: "ahmedabad", Name: "Ahmedabad", Latitude: 23.091, Longitude: 72.538, CheckinRadius: 100, AdminID: "admin-1"},
			{ID: "pune", Name: "Pune", Latitude: 18.52, Longitude: 73.85, CheckinRadius: 150},
		},
		Assignments: []Assignment{
			{UserID: "u1", OfficeID: "ahmedabad", Role: "employee"},
			{UserID: "u2", OfficeID: "ahmedabad", Role: "admin"},
			{UserID: "u3", OfficeID: Unassigned, Role: "employee"},
		},
	}
}

func TestDirectoryLookups(t *testing.T) {
	t.Parallel()
	d := sampleDirectory()
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	o, ok := d.OfficeFor("u1")
	if !ok || o.ID != "ahmedabad" {
		t.Fatalf("u1 office = %+v ok=%v", o, ok)
	}
	if _, ok := d.OfficeFor("u3"); ok {
		t.Fatalf("N/A must mean unassigned")
	}
	if _, ok := d.OfficeFor("ghost"); ok {
		t.Fatalf("unknown user must be unassigned")
	}
	if got := d.Members("ahmedabad"); len(got) != 2 {
		t.Fatalf("expected two members, got %+v", got)
	}
}

func TestDirectoryValidateRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*Directory){
		"slug":       func(d *Directory) { d.Offices[0].ID = "Ahmedabad HQ" },
		"radius":     func(d *Directory) { d.Offices[0].CheckinRadius = 0 },
		"latitude":   func(d *Directory) { d.Offices[1].Latitude = 91 },
		"name":       func(d *Directory) { d.Offices[1].Name = " " },
		"duplicate":  func(d *Directory) { d.Offices[1].ID = "ahmedabad" },
		"unknown":    func(d *Directory) { d.Assignments[0].OfficeID = "delhi" },
		"twice":      func(d *Directory) { d.Assignments[1].UserID = "u1" },
		"empty user": func(d *Directory) { d.Assignments[2].UserID = "" },
		"nan lat":    func(d *Directory) { d.Offices[0].Latitude = math.NaN() },
		"inf lon":    func(d *Directory) { d.Offices[1].Longitude = math.Inf(1) },
		"nan radius": func(d *Directory) { d.Offices[0].CheckinRadius = math.NaN() },
	}
	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			d := sampleDirectory()
			mutate(&d)
			if err := d.Validate(); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}
