// Package inventory defines the domain model shared by the geometrizer and
// the pairing engine: declared installations, detected installations,
// cadastral parcels, and the links asserted between the two inventories.
//
// Footprints are carried as EWKB byte slices in the Lambert-93 planar
// reference system (EPSG:2154). A nil footprint means the geometry has not
// been computed or is not computable; see FootprintStatus.
package inventory

import "time"

// FootprintStatus tracks the geometrization state of a declaration. Values
// match the geom_statut column of the declaration store.
type FootprintStatus string

const (
	// FootprintPending marks a declaration whose footprint has not been
	// computed yet. Imported declarations start in this state.
	FootprintPending FootprintStatus = "en_attente"

	// FootprintComputed marks a declaration with a valid computed footprint.
	FootprintComputed FootprintStatus = "calculee"

	// FootprintUnresolved marks a declaration none of whose parcel
	// references matched the cadastre. Distinct from an empty geometry.
	FootprintUnresolved FootprintStatus = "irresoluble"
)

// Declaration is an administratively submitted record describing a
// photovoltaic installation. It references cadastral parcels instead of
// carrying a digitized footprint; the geometrizer derives the footprint
// from those references exactly once per run.
type Declaration struct {
	ID             int64           // id_dossier, the dossier number
	ParcelRefs     string          // num_parcelles, delimiter-separated cadastral IDUs
	Footprint      []byte          // geom as EWKB, nil until geometrized
	Status         FootprintStatus // geom_statut
	MissingParcels int             // parcelles_absentes, references skipped at resolution

	// Descriptive attributes, irrelevant to matching.
	Power        *int64     // puiss_max, peak power in kWc
	InstalledOn  *time.Time // date_insta
	FiledOn      *time.Time // date_depot
	Address      *string    // adresse
	State        *string    // etat, project progress
	ProjectType  *string    // type_proj
	LandUse      *string    // usage_terr
	SoilNature   *string    // sol_nature
	SoilDetail   *string    // sol_detail
	OccupiedArea *float64   // surf_occup, m²
	GroundArea   *float64   // surf_terr, m²
}

// HasFootprint reports whether the declaration carries a computed footprint
// and is therefore eligible for pairing.
func (d *Declaration) HasFootprint() bool {
	return len(d.Footprint) > 0
}

// Detection is an installation footprint produced by automated analysis of
// aerial imagery. Immutable from this module's perspective.
type Detection struct {
	ID        int64      // id
	Footprint []byte     // geom as EWKB
	Vintage   int        // millesime, acquisition year of the source imagery
	UpdatedAt *time.Time // date_maj
}

// CadastralParcel is a land-registry polygon, the atomic unit from which
// declaration footprints are assembled. Read-only reference data.
type CadastralParcel struct {
	IDU       string // 14-character cadastral identifier
	Footprint []byte // geom as EWKB
}

// Link asserts that one declaration and one detection describe the same
// physical installation. Many-to-many is legal and expected: one declared
// site may fragment into several detected polygons and one detected polygon
// may straddle two adjacent declared sites.
type Link struct {
	DeclarationID int64 // id_dossier
	DetectionID   int64 // id_detection
}

// FootprintUpdate carries the geometrizer's verdict for one declaration
// back to the store: either a computed footprint or an unresolved marker,
// plus the count of references that matched no parcel.
type FootprintUpdate struct {
	DeclarationID  int64
	Footprint      []byte // nil when Status is FootprintUnresolved
	Status         FootprintStatus
	MissingParcels int
}
