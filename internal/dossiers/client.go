// Package dossiers imports photovoltaic declarations from the
// procedure-submission GraphQL API. The client pages through the accepted
// dossiers of one procedure with Relay cursors, and the mapping layer turns
// each dossier's form fields into an inventory declaration keyed by dossier
// number.
package dossiers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/IGNF/ocsge-pv/pkg/config"
	"github.com/IGNF/ocsge-pv/pkg/constants"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// demarcheQuery fetches one page of a procedure's accepted dossiers with
// Relay cursor-based pagination (first/after).
const demarcheQuery = `
query getDemarche(
  $demarcheNumber: Int!
  $includeDossiers: Boolean!
  $includeChamps: Boolean!
  $state: DossierState
  $order: Order
  $first: Int
  $after: String
  $updatedSince: ISO8601DateTime
) {
  demarche(number: $demarcheNumber) {
    number
    dossiers(
      state: $state
      order: $order
      first: $first
      after: $after
      updatedSince: $updatedSince
    ) @include(if: $includeDossiers) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        number
        champs @include(if: $includeChamps) {
          __typename
          label
          stringValue
          ... on DateChamp {
            date
          }
          ... on IntegerNumberChamp {
            integerNumber: value
          }
          ... on DecimalNumberChamp {
            decimalNumber: value
          }
          ... on LinkedDropDownListChamp {
            primaryValue
            secondaryValue
          }
          ... on CarteChamp {
            geoAreas {
              source
              ... on ParcelleCadastrale {
                commune
                prefixe
                section
                numero
              }
            }
          }
        }
      }
    }
  }
}
`

// Client is a GraphQL client for one declaration procedure.
type Client struct {
	endpoint   string
	token      string
	demarche   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the procedure named in the import settings.
func NewClient(settings config.ImportSettings) *Client {
	return &Client{
		endpoint: settings.APIURL,
		token:    settings.Token,
		demarche: settings.DemarcheID,
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		limiter: rate.NewLimiter(
			rate.Limit(constants.DefaultRequestsPerSecond),
			constants.DefaultBurstSize),
	}
}

// FetchDossiers returns every accepted dossier of the procedure, oldest
// first, paging until the API reports no next page. A non-nil since
// restricts the fetch to dossiers updated after that instant.
func (c *Client) FetchDossiers(ctx context.Context, since *time.Time) ([]Dossier, error) {
	if c.token == "" {
		return nil, pkgerrors.NewConfigError("import", "auth token is required", nil)
	}

	log := logging.Ctx(ctx)
	var all []Dossier
	var cursor *string

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		variables := map[string]any{
			"demarcheNumber":  c.demarche,
			"includeDossiers": true,
			"includeChamps":   true,
			"state":           "accepte",
			"order":           "ASC",
			"first":           constants.DefaultPageSize,
		}
		if since != nil {
			variables["updatedSince"] = since.UTC().Format(time.RFC3339)
		}
		if cursor != nil {
			variables["after"] = *cursor
		}

		conn, err := c.fetchPage(ctx, variables)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			break
		}

		all = append(all, conn.Nodes...)
		log.Debug().
			Int("page", len(conn.Nodes)).
			Int("total", len(all)).
			Msg("dossiers page fetched")

		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			break
		}
		cursor = &conn.PageInfo.EndCursor
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, variables map[string]any) (*dossierConnection, error) {
	body, err := json.Marshal(graphQLRequest{Query: demarcheQuery, Variables: variables})
	if err != nil {
		return nil, pkgerrors.WrapAPI(c.endpoint, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.WrapAPI(c.endpoint, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.WrapAPI(c.endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.NewAPIError(c.endpoint, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, pkgerrors.WrapAPI(c.endpoint, 0, err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, pkgerrors.NewAPIError(c.endpoint, 0, gqlResp.Errors[0].Message)
	}
	if gqlResp.Data == nil || gqlResp.Data.Demarche == nil {
		return nil, pkgerrors.NewAPIError(c.endpoint, 0, "response carries no demarche")
	}

	return gqlResp.Data.Demarche.Dossiers, nil
}
