package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
	"github.com/ajitpratap0/grantsync/pkg/store"
	"github.com/ajitpratap0/grantsync/pkg/store/storetest"
	"github.com/ajitpratap0/grantsync/pkg/testutil"
)

func TestConformance(t *testing.T) {
	uri := testutil.RequireEnv(t, "GRANTSYNC_TEST_MONGODB_URI")

	storetest.Run(t, func(t *testing.T) store.Client {
		db := fmt.Sprintf("grantsync_test_%d", time.Now().UnixNano())
		s, err := Open(testutil.TestContext(t), config.MongoDBConfig{URI: uri, Database: db, Timeout: 10 * time.Second})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.database.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(testutil.TestContext(t), config.MongoDBConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDocumentDropsReference(t *testing.T) {
	doc, err := document(&models.User{ID: "mongodb:User/abc", FirstName: "Amanda", LocatorIDs: []string{"x"}})
	require.NoError(t, err)

	keys := make([]string, 0, len(doc))
	for _, e := range doc {
		keys = append(keys, e.Key)
	}
	assert.NotContains(t, keys, "_ref")
	assert.Contains(t, keys, "firstName")
	assert.Contains(t, keys, "locatorIds")
}

func TestReferenceRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	ref := reference(models.KindGrant, id)

	got, err := parseRef(ref, models.KindGrant)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseRef(ref, models.KindUser)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = parseRef("mongodb:Grant/zz", models.KindGrant)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
