package queryengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

func Test_ConvertDatamodel_DefaultsDatabaseNames(t *testing.T) {
	// arrange
	datamodel := queryengine.Datamodel{Models: []queryengine.Model{
		{Name: "User", DBName: "users", Fields: []queryengine.Field{
			{Name: "id", Type: queryengine.ScalarInt, IsID: true},
			{Name: "email", DBName: "email_address", Type: queryengine.ScalarString, IsUnique: true},
		}},
		{Name: "Post", Fields: []queryengine.Field{{Name: "id", Type: queryengine.ScalarInt, IsID: true}}},
	}}

	// act
	idm := queryengine.ConvertDatamodel(datamodel).Build("app")

	// assert
	assert.Equal(t, "app", idm.DBName)

	user, ok := idm.FindModel("User")
	require.True(t, ok)
	assert.Equal(t, "users", user.DBName)

	email, ok := user.FieldByName("email")
	require.True(t, ok)
	assert.Equal(t, "email_address", email.DBName)

	id, _ := user.FieldByName("id")
	assert.Equal(t, "id", id.DBName)
	assert.Len(t, user.UniqueFields(), 2)

	post, ok := idm.FindModel("Post")
	require.True(t, ok)
	assert.Equal(t, "Post", post.DBName)

	_, ok = idm.FindModel("Comment")
	assert.False(t, ok)
}

func Test_ConvertDatamodel_DoesNotShareFieldsWithInput(t *testing.T) {
	datamodel := queryengine.Datamodel{Models: []queryengine.Model{
		{Name: "User", Fields: []queryengine.Field{{Name: "id", Type: queryengine.ScalarInt}}},
	}}

	queryengine.ConvertDatamodel(datamodel)

	assert.Empty(t, datamodel.Models[0].Fields[0].DBName)
}
