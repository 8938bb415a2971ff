package dossiers

// GraphQL request and response types for the procedure-submission API.
// Champ kinds are schema subtypes; Champ below is the union of the fields
// the mapping reads, populated through inline fragments in demarcheQuery.

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   *responseData  `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

type responseData struct {
	Demarche *demarcheNode `json:"demarche"`
}

type demarcheNode struct {
	Number   int                `json:"number"`
	Dossiers *dossierConnection `json:"dossiers"`
}

type dossierConnection struct {
	PageInfo pageInfo  `json:"pageInfo"`
	Nodes    []Dossier `json:"nodes"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Dossier is one accepted submission, identified by its number.
type Dossier struct {
	Number int64   `json:"number"`
	Champs []Champ `json:"champs"`
}

// Champ is one form field of a dossier. The integer value arrives as a
// string (the schema serializes big integers that way) and the decimal as a
// nullable number, so absence is distinguishable from zero.
type Champ struct {
	TypeName       string    `json:"__typename"`
	Label          string    `json:"label"`
	StringValue    string    `json:"stringValue"`
	Date           string    `json:"date,omitempty"`
	IntegerNumber  string    `json:"integerNumber,omitempty"`
	DecimalNumber  *float64  `json:"decimalNumber,omitempty"`
	PrimaryValue   string    `json:"primaryValue,omitempty"`
	SecondaryValue string    `json:"secondaryValue,omitempty"`
	GeoAreas       []GeoArea `json:"geoAreas,omitempty"`
}

// GeoArea is a geo-referenced element attached to a map champ. Cadastral
// parcels carry source "cadastre" plus the IDU components; hand-drawn
// geometries carry another source and no components.
type GeoArea struct {
	Source  string `json:"source"`
	Commune string `json:"commune,omitempty"`
	Prefixe string `json:"prefixe,omitempty"`
	Section string `json:"section,omitempty"`
	Numero  string `json:"numero,omitempty"`
}
