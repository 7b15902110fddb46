package pass

import (
	"github.com/goccy/go-json"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
)

type searchResult struct {
	Hits struct {
		Hits []struct {
			Source struct {
				ID string `json:"@id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type term map[string]map[string]string

type searchQuery struct {
	Query struct {
		Bool struct {
			Filter []term `json:"filter"`
		} `json:"bool"`
	} `json:"query"`
	Source []string `json:"_source"`
	Size   int      `json:"size"`
}

// termQuery matches entities of kind whose attribute equals value. A term
// on an array field matches any element.
func termQuery(kind models.Kind, attribute, value string) searchQuery {
	var q searchQuery
	q.Query.Bool.Filter = []term{
		{"term": {"@type": string(kind)}},
		{"term": {attribute: value}},
	}
	q.Source = []string{"@id"}
	q.Size = 1
	return q
}

// encode renders entity as a PASS JSON resource: its fields plus @type,
// without the id, which the repository owns.
func encode(entity models.Entity) ([]byte, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "encode "+string(entity.Kind()))
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "encode "+string(entity.Kind()))
	}
	delete(doc, "id")
	doc["@type"], _ = json.Marshal(string(entity.Kind()))
	return json.Marshal(doc)
}
