package dossiers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IGNF/ocsge-pv/internal/parcelref"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// Form labels the mapping recognizes, matched as substrings. They reproduce
// the procedure's wording exactly, including its mix of typographic and
// ASCII apostrophes.
const (
	labelPower        = "puissance crête maximum"
	labelInstalledOn  = "date d'installation effective"
	labelFiledOn      = "date du dépôt de la demande d'autorisation d'urbanisme"
	labelAddress      = "adresse d’implantation du projet"
	labelState        = "avancement du projet"
	labelProjectType  = "type de projet principal"
	labelLandUse      = "type d’usage actuel du terrain d’implantation"
	labelSoilNature   = "nature principale du sol"
	labelOccupiedArea = "surface occupée par l'installation"
	labelGroundArea   = "surface du terrain d’implantation"

	// Map champs are matched on their type plus this label fragment.
	carteChampType = "CarteChamp"
	labelParcels   = "parcelles"

	// geoAreaCadastre marks an area selected on the cadastre layer, the
	// only kind that yields a parcel reference.
	geoAreaCadastre = "cadastre"

	champDateLayout = "2006-01-02"
)

// Declaration converts the dossier into the inventory model. raw reports
// whether the dossier carried hand-drawn geometries instead of (or besides)
// cadastral parcels; issues lists champ values that could not be
// interpreted. Both are per-dossier diagnostics: the returned declaration
// is written either way, with the fields that did parse.
func (d *Dossier) Declaration() (decl inventory.Declaration, raw bool, issues []string) {
	decl.ID = d.Number
	decl.Status = inventory.FootprintPending

	var parcels []string
	for _, champ := range d.Champs {
		switch {
		case strings.Contains(champ.Label, labelPower):
			v, err := strconv.ParseInt(champ.IntegerNumber, 10, 64)
			if err != nil {
				issues = append(issues, champIssue(champ, err))
				continue
			}
			decl.Power = &v

		case strings.Contains(champ.Label, labelInstalledOn):
			t, err := time.Parse(champDateLayout, champ.Date)
			if err != nil {
				issues = append(issues, champIssue(champ, err))
				continue
			}
			decl.InstalledOn = &t

		case strings.Contains(champ.Label, labelFiledOn):
			t, err := time.Parse(champDateLayout, champ.Date)
			if err != nil {
				issues = append(issues, champIssue(champ, err))
				continue
			}
			decl.FiledOn = &t

		case strings.Contains(champ.Label, labelAddress):
			setString(&decl.Address, champ.StringValue)

		case strings.Contains(champ.Label, labelState):
			setString(&decl.State, champ.StringValue)

		case strings.Contains(champ.Label, labelProjectType):
			setString(&decl.ProjectType, champ.StringValue)

		case strings.Contains(champ.Label, labelLandUse):
			setString(&decl.LandUse, champ.StringValue)

		case strings.Contains(champ.Label, labelSoilNature):
			setString(&decl.SoilNature, champ.PrimaryValue)
			setString(&decl.SoilDetail, champ.SecondaryValue)

		case strings.Contains(champ.Label, labelOccupiedArea):
			if champ.DecimalNumber == nil {
				issues = append(issues, champIssue(champ, errMissingValue))
				continue
			}
			v := *champ.DecimalNumber
			decl.OccupiedArea = &v

		case strings.Contains(champ.Label, labelGroundArea):
			if champ.DecimalNumber == nil {
				issues = append(issues, champIssue(champ, errMissingValue))
				continue
			}
			v := *champ.DecimalNumber
			decl.GroundArea = &v

		case champ.TypeName == carteChampType && strings.Contains(champ.Label, labelParcels):
			for _, area := range champ.GeoAreas {
				if area.Source != geoAreaCadastre {
					raw = true
					continue
				}
				parcels = append(parcels,
					parcelref.ComposeIDU(area.Commune, area.Prefixe, area.Section, area.Numero))
			}
		}
	}

	decl.ParcelRefs = strings.Join(parcels, ";")
	return decl, raw, issues
}

var errMissingValue = fmt.Errorf("value is missing")

func champIssue(champ Champ, err error) string {
	return fmt.Sprintf("%q: %v", champ.Label, err)
}

func setString(dst **string, value string) {
	if value == "" {
		return
	}
	v := value
	*dst = &v
}
