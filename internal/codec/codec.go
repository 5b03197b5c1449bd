package codec

import (
	"time"

	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/model"
)

// DecodeZone builds a Zone from a record. Visibility defaults to true; a missing
// or unknown status is inferred from progress.
func DecodeZone(rec airtable.Record) model.Zone {
	f := rec.Fields
	z := model.Zone{
		ID:              rec.ID,
		Number:          intOr(f, FieldZoneNumber, 0),
		Name:            stringOr(f, FieldZoneDisplay, ""),
		InternalName:    stringOr(f, FieldZoneProd, ""),
		YStart:          intOr(f, FieldYStart, 0),
		YEnd:            intOr(f, FieldYEnd, 0),
		TotalLayers:     intOr(f, FieldTotalLayers, 0),
		LayersComplete:  intOr(f, FieldLayerProgress, 0),
		BlocksPlanned:   intOr(f, FieldPlannedRollup, 0),
		BlocksPlaced:    intOr(f, FieldPlacedRollup, 0),
		BlocksRemaining: intOr(f, FieldBlocksRemaining, 0),
		ProgressAPI:     floatPtr(f, FieldProgress),
		Hours:           floatOr(f, FieldHoursRollup, 0),
		Teaser:          stringOr(f, FieldTeaser, ""),
		Visible:         boolOr(f, FieldVisible, true),
	}

	status, ok := model.ParseZoneStatus(stringOr(f, FieldStatus, ""))
	if !ok {
		status = model.InferZoneStatus(z.Progress(), z.Number)
	}
	z.Status = status
	return z
}

// EncodeZone emits the writable zone columns.
func EncodeZone(z model.Zone) airtable.Fields {
	f := airtable.Fields{}
	setIfNotEmpty(f, FieldZoneDisplay, z.Name)
	if z.Number > 0 {
		f.Set(FieldZoneNumber, z.Number)
	}
	if z.LayersComplete > 0 {
		f.Set(FieldLayerProgress, z.LayersComplete)
	}
	f.Set(FieldVisible, z.Visible)
	f.Set(FieldStatus, string(z.Status))
	f.Set(FieldTeaser, z.Teaser)
	return f
}

// DecodeStructure builds a Structure from a record.
func DecodeStructure(rec airtable.Record) model.Structure {
	f := rec.Fields
	s := model.Structure{
		ID:                     rec.ID,
		Name:                   stringOr(f, FieldStructureDisplay, ""),
		InternalName:           stringOr(f, FieldStructureProd, ""),
		Type:                   model.ParseStructureType(stringOr(f, FieldStructureType, "")),
		BlocksPlanned:          intOr(f, FieldBlocksPlanned, 0),
		BlocksPlaced:           intOr(f, FieldPlacedRollup, 0),
		ProgressAPI:            floatPtr(f, FieldProgress),
		EstimatedHours:         floatOr(f, FieldEstimatedHours, 0),
		Hours:                  floatOr(f, FieldHoursRollup, 0),
		ForecastHoursRemaining: floatOr(f, FieldForecastHours, 0),
		KidsText:               stringOr(f, FieldKidsText, ""),
		RealText:               stringOr(f, FieldRealText, ""),
		Visible:                boolOr(f, FieldVisible, true),
		ZoneIDs:                stringsOf(f, FieldStructureZones),
	}
	if n, ok := intOf(f, FieldBlocksRemaining); ok {
		s.BlocksRemaining = &n
	}
	return s
}

// EncodeStructure emits the writable structure columns.
func EncodeStructure(s model.Structure) airtable.Fields {
	f := airtable.Fields{}
	setIfNotEmpty(f, FieldStructureDisplay, s.Name)
	if s.BlocksPlanned > 0 {
		f.Set(FieldBlocksPlanned, s.BlocksPlanned)
	}
	typ := s.Type
	if typ == "" {
		typ = model.StructureOther
	}
	f.Set(FieldStructureType, string(typ))
	setIfNotEmpty(f, FieldKidsText, s.KidsText)
	setIfNotEmpty(f, FieldRealText, s.RealText)
	f.Set(FieldVisible, s.Visible)
	return f
}

// DecodeMaterial builds a Material from a record.
func DecodeMaterial(rec airtable.Record) model.Material {
	f := rec.Fields
	return model.Material{
		ID:          rec.ID,
		Name:        stringOr(f, FieldMaterialName, "Unknown"),
		Category:    stringOr(f, FieldCategory, ""),
		QtyPlanned:  intOr(f, FieldQtyPlanned, 0),
		QtyRemain:   intOr(f, FieldQtyRemaining, 0),
		ProgressAPI: floatPtr(f, FieldProgress),
		Notes:       stringOr(f, FieldNotes, ""),
	}
}

// EncodeMaterial emits the writable material columns.
func EncodeMaterial(m model.Material) airtable.Fields {
	f := airtable.Fields{}
	f.Set(FieldMaterialName, m.Name)
	setIfNotEmpty(f, FieldCategory, m.Category)
	f.Set(FieldQtyPlanned, m.QtyPlanned)
	setIfNotEmpty(f, FieldNotes, m.Notes)
	return f
}

// DecodeSession builds a BuildSession from a record. The formula duration wins
// over the input column when both are present.
func DecodeSession(rec airtable.Record) model.BuildSession {
	f := rec.Fields
	s := model.BuildSession{
		ID:            rec.ID,
		BlocksPlaced:  intOr(f, FieldSessionBlocks, 0),
		Notes:         stringOr(f, FieldNotesDisplay, ""),
		InternalNotes: stringOr(f, FieldNotesProd, ""),
		Visible:       boolOr(f, FieldVisible, true),
		ZoneIDs:       stringsOf(f, FieldZonesWorked),
		StructureIDs:  stringsOf(f, FieldStructuresWorked),
		Mood:          model.DefaultMood,
	}

	if d, ok := f.String(FieldSessionDate); ok {
		s.Date = parseDate(d)
	}
	if n, ok := intOf(f, FieldDurationFormula); ok {
		s.DurationMinutes = n
	} else if n, ok := intOf(f, FieldDurationInput); ok {
		s.DurationMinutes = n
	}
	if u, ok := f.ThumbnailURL(FieldPhoto, PhotoSize); ok {
		s.PhotoURL = u
	}
	if m, ok := model.ParseMood(stringOr(f, FieldMood, "")); ok {
		s.Mood = m
	}
	return s
}

// EncodeSession emits the writable session columns, using the input duration column.
func EncodeSession(s model.BuildSession) airtable.Fields {
	f := airtable.Fields{}
	if !s.Date.IsZero() {
		f.Set(FieldSessionDate, s.Date.Format(model.SessionDateLayout))
	}
	if s.DurationMinutes > 0 {
		f.Set(FieldDurationInput, s.DurationMinutes)
	}
	f.Set(FieldSessionBlocks, s.BlocksPlaced)
	mood := s.Mood
	if mood == "" {
		mood = model.DefaultMood
	}
	f.Set(FieldMood, string(mood))
	setIfNotEmpty(f, FieldNotesDisplay, s.Notes)
	setIfNotEmpty(f, FieldNotesProd, s.InternalNotes)
	f.Set(FieldVisible, s.Visible)
	if len(s.ZoneIDs) > 0 {
		f.Set(FieldZonesWorked, s.ZoneIDs)
	}
	if len(s.StructureIDs) > 0 {
		f.Set(FieldStructuresWorked, s.StructureIDs)
	}
	return f
}

func parseDate(s string) time.Time {
	if t, err := time.Parse(model.SessionDateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
