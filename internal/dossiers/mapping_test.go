package dossiers_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IGNF/ocsge-pv/internal/dossiers"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

func floatPtr(v float64) *float64 { return &v }

func TestDossierDeclaration(t *testing.T) {
	t.Run("maps the descriptive champs", func(t *testing.T) {
		d := dossiers.Dossier{
			Number: 4217,
			Champs: []dossiers.Champ{
				{
					TypeName:      "IntegerNumberChamp",
					Label:         "Quelle est la puissance crête maximum de votre installation (en kWc) ?",
					IntegerNumber: "2500",
				},
				{
					TypeName: "DateChamp",
					Label:    "Indiquez la date d'installation effective des panneaux",
					Date:     "2024-03-15",
				},
				{
					TypeName: "DateChamp",
					Label:    "Indiquez la date du dépôt de la demande d'autorisation d'urbanisme",
					Date:     "2023-01-30",
				},
				{
					TypeName:    "TextChamp",
					Label:       "Indiquez l'adresse d’implantation du projet",
					StringValue: "12 chemin des Oliviers, 34070 Montpellier",
				},
				{
					TypeName:    "DropDownListChamp",
					Label:       "Quel est l'avancement du projet ?",
					StringValue: "En exploitation",
				},
				{
					TypeName:    "DropDownListChamp",
					Label:       "Quel est le type de projet principal ?",
					StringValue: "Centrale au sol",
				},
				{
					TypeName:    "DropDownListChamp",
					Label:       "Quel est le type d’usage actuel du terrain d’implantation ?",
					StringValue: "Agricole",
				},
				{
					TypeName:       "LinkedDropDownListChamp",
					Label:          "Quelle est la nature principale du sol ?",
					PrimaryValue:   "Sol artificiel",
					SecondaryValue: "Zone imperméable",
				},
				{
					TypeName:      "DecimalNumberChamp",
					Label:         "Quelle est la surface occupée par l'installation (en m²) ?",
					DecimalNumber: floatPtr(15000.5),
				},
				{
					TypeName:      "DecimalNumberChamp",
					Label:         "Quelle est la surface du terrain d’implantation (en m²) ?",
					DecimalNumber: floatPtr(42000),
				},
			},
		}

		decl, raw, issues := d.Declaration()

		assert.False(t, raw)
		assert.Empty(t, issues)

		assert.Equal(t, int64(4217), decl.ID)
		assert.Equal(t, inventory.FootprintPending, decl.Status)

		require.NotNil(t, decl.Power)
		assert.Equal(t, int64(2500), *decl.Power)
		require.NotNil(t, decl.InstalledOn)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *decl.InstalledOn)
		require.NotNil(t, decl.FiledOn)
		assert.Equal(t, time.Date(2023, 1, 30, 0, 0, 0, 0, time.UTC), *decl.FiledOn)
		require.NotNil(t, decl.Address)
		assert.Equal(t, "12 chemin des Oliviers, 34070 Montpellier", *decl.Address)
		require.NotNil(t, decl.State)
		assert.Equal(t, "En exploitation", *decl.State)
		require.NotNil(t, decl.ProjectType)
		assert.Equal(t, "Centrale au sol", *decl.ProjectType)
		require.NotNil(t, decl.LandUse)
		assert.Equal(t, "Agricole", *decl.LandUse)
		require.NotNil(t, decl.SoilNature)
		assert.Equal(t, "Sol artificiel", *decl.SoilNature)
		require.NotNil(t, decl.SoilDetail)
		assert.Equal(t, "Zone imperméable", *decl.SoilDetail)
		require.NotNil(t, decl.OccupiedArea)
		assert.Equal(t, 15000.5, *decl.OccupiedArea)
		require.NotNil(t, decl.GroundArea)
		assert.Equal(t, 42000.0, *decl.GroundArea)
	})

	t.Run("assembles parcel references with zero padding", func(t *testing.T) {
		d := dossiers.Dossier{
			Number: 4218,
			Champs: []dossiers.Champ{{
				TypeName: "CarteChamp",
				Label:    "Sélectionnez les parcelles cadastrales du projet",
				GeoAreas: []dossiers.GeoArea{
					{Source: "cadastre", Commune: "34070", Prefixe: "000", Section: "A", Numero: "123"},
					{Source: "cadastre", Commune: "34070", Prefixe: "000", Section: "AB", Numero: "1234"},
				},
			}},
		}

		decl, raw, issues := d.Declaration()

		assert.False(t, raw)
		assert.Empty(t, issues)
		assert.Equal(t, "340700000A0123;34070000AB1234", decl.ParcelRefs)
	})

	t.Run("flags raw geometries but keeps cadastral parcels", func(t *testing.T) {
		d := dossiers.Dossier{
			Number: 4219,
			Champs: []dossiers.Champ{{
				TypeName: "CarteChamp",
				Label:    "Sélectionnez les parcelles cadastrales du projet",
				GeoAreas: []dossiers.GeoArea{
					{Source: "selection_utilisateur"},
					{Source: "cadastre", Commune: "34070", Prefixe: "000", Section: "0A", Numero: "0123"},
				},
			}},
		}

		decl, raw, _ := d.Declaration()

		assert.True(t, raw)
		assert.Equal(t, "340700000A0123", decl.ParcelRefs)
	})

	t.Run("unparseable values become issues, not failures", func(t *testing.T) {
		d := dossiers.Dossier{
			Number: 4220,
			Champs: []dossiers.Champ{
				{
					TypeName:      "IntegerNumberChamp",
					Label:         "Quelle est la puissance crête maximum de votre installation (en kWc) ?",
					IntegerNumber: "",
				},
				{
					TypeName: "DateChamp",
					Label:    "Indiquez la date d'installation effective des panneaux",
					Date:     "pas encore",
				},
				{
					TypeName: "DecimalNumberChamp",
					Label:    "Quelle est la surface occupée par l'installation (en m²) ?",
				},
				{
					TypeName:    "TextChamp",
					Label:       "Indiquez l'adresse d’implantation du projet",
					StringValue: "3 rue Haute, 2A004 Ajaccio",
				},
			},
		}

		decl, _, issues := d.Declaration()

		assert.Len(t, issues, 3)
		assert.Nil(t, decl.Power)
		assert.Nil(t, decl.InstalledOn)
		assert.Nil(t, decl.OccupiedArea)
		require.NotNil(t, decl.Address, "champs after a faulty one must still map")
	})

	t.Run("unrelated champs are ignored", func(t *testing.T) {
		d := dossiers.Dossier{
			Number: 4221,
			Champs: []dossiers.Champ{
				{TypeName: "TextChamp", Label: "Commentaire libre", StringValue: "RAS"},
				{TypeName: "CheckboxChamp", Label: "Etes-vous le porteur de projet ?"},
			},
		}

		decl, raw, issues := d.Declaration()

		assert.False(t, raw)
		assert.Empty(t, issues)
		assert.Equal(t, inventory.Declaration{
			ID:     4221,
			Status: inventory.FootprintPending,
		}, decl)
	})

	t.Run("dossier without champs yields an empty reference list", func(t *testing.T) {
		d := dossiers.Dossier{Number: 4222}

		decl, raw, issues := d.Declaration()

		assert.False(t, raw)
		assert.Empty(t, issues)
		assert.Empty(t, decl.ParcelRefs)
	})
}
