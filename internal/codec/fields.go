// Package codec maps Airtable records to typed model records and back.
//
// Decoding is best effort per field: a missing or mistyped cell falls back to the
// field's default and never fails the record. Encoding emits only writable
// columns, so rollups and formulas are never sent.
package codec

import (
	"math"

	"github.com/teamstreem/realm/internal/airtable"
)

// Zone columns.
const (
	FieldZoneDisplay     = "Zone_Display"
	FieldZoneProd        = "Zone_Prod"
	FieldZoneNumber      = "Zone_Number"
	FieldYStart          = "Y_Start_Prod"
	FieldYEnd            = "Y_End_Prod"
	FieldTotalLayers     = "Total_Layers"
	FieldLayerProgress   = "Layer_Progress"
	FieldPlannedRollup   = "Blocks_Planned_Rollup"
	FieldPlacedRollup    = "Blocks_Placed_Rollup"
	FieldBlocksRemaining = "Blocks_Remaining"
	FieldProgress        = "Progress"
	FieldHoursRollup     = "Hours_Rollup"
	FieldTeaser          = "Teaser_Message"
	FieldStatus          = "Status"
	FieldVisible         = "Is_Visible_To_Kids"
)

// Structure columns.
const (
	FieldStructureDisplay = "Structure_Display"
	FieldStructureProd    = "Structure_Prod"
	FieldStructureType    = "Structure_Type"
	FieldBlocksPlanned    = "Blocks_Planned"
	FieldEstimatedHours   = "Estimated_Hours"
	FieldForecastHours    = "Forecast_Hours_Remaining"
	FieldKidsText         = "What_We_Tell_The_Kids"
	FieldRealText         = "What_Really_Happens"
	FieldStructureZones   = "Zone"
)

// Material columns.
const (
	FieldMaterialName = "Material_Name"
	FieldCategory     = "Category"
	FieldQtyPlanned   = "Qty_Planned"
	FieldQtyRemaining = "Qty_Remaining"
	FieldNotes        = "Notes"
)

// Build session columns. Duration_Minutes is a formula; writes go to the input column.
const (
	FieldSessionDate      = "Session_Date"
	FieldDurationFormula  = "Duration_Minutes"
	FieldDurationInput    = "Duration_Input_Minutes"
	FieldSessionBlocks    = "Blocks_Placed_This_Session"
	FieldNotesDisplay     = "Notes_Display"
	FieldNotesProd        = "Notes_Prod"
	FieldZonesWorked      = "Zone_Worked"
	FieldStructuresWorked = "Structures_Worked"
	FieldPhoto            = "Photo"
	FieldMood             = "Mood"
)

// PhotoSize is the thumbnail rendition used for session photos.
const PhotoSize = "large"

// intOf reads an integer cell, rounding formula results that come back fractional.
func intOf(f airtable.Fields, name string) (int, bool) {
	if n, ok := f.Int(name); ok {
		return n, true
	}
	if x, ok := f.Float(name); ok {
		return int(math.Round(x)), true
	}
	return 0, false
}

func intOr(f airtable.Fields, name string, def int) int {
	if n, ok := intOf(f, name); ok {
		return n
	}
	return def
}

func floatOr(f airtable.Fields, name string, def float64) float64 {
	if x, ok := f.Float(name); ok {
		return x
	}
	return def
}

func floatPtr(f airtable.Fields, name string) *float64 {
	if x, ok := f.Float(name); ok {
		return &x
	}
	return nil
}

func stringOr(f airtable.Fields, name, def string) string {
	if s, ok := f.String(name); ok {
		return s
	}
	return def
}

func boolOr(f airtable.Fields, name string, def bool) bool {
	if b, ok := f.Bool(name); ok {
		return b
	}
	return def
}

func stringsOf(f airtable.Fields, name string) []string {
	ss, _ := f.Strings(name)
	return ss
}

func setIfNotEmpty(f airtable.Fields, name, v string) {
	if v != "" {
		f.Set(name, v)
	}
}
