package airtable

// Table names in the build base.
const (
	TableZones              = "Zones"
	TableStructures         = "Structures"
	TableMaterials          = "Materials"
	TableSessions           = "Build_Sessions"
	TableZoneMaterials      = "Zone_Materials"
	TableStructureMaterials = "Structure_Materials"
	TableProject            = "Project"
)
