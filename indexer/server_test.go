package indexer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	_, db, _ := projectedScenario(t)
	server := httptest.NewServer(NewServer(NewQueries(db, nil, nil), nil).Handler())
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, server *httptest.Server, path string, out interface{}) int {
	t.Helper()
	res, err := server.Client().Get(server.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func contentIDs(contents []Content) []uint64 {
	ids := make([]uint64, 0, len(contents))
	for _, c := range contents {
		ids = append(ids, c.ContentID)
	}
	return ids
}

func TestListContentsOrdering(t *testing.T) {
	server := newTestAPI(t)
	cases := []struct {
		query string
		want  []uint64
	}{
		{"", []uint64{0, 1}},
		{"?orderBy=createdAt&direction=desc", []uint64{1, 0}},
		{"?orderBy=likeCount&direction=desc", []uint64{0, 1}},
		{"?orderBy=likerRewardPool&direction=desc", []uint64{1, 0}},
		{"?orderBy=authorPool", []uint64{0, 1}},
		{"?orderBy=createdAt&first=1&skip=1", []uint64{1}},
	}
	for _, tc := range cases {
		var contents []Content
		require.Equal(t, http.StatusOK, getJSON(t, server, "/contents"+tc.query, &contents), tc.query)
		require.Equal(t, tc.want, contentIDs(contents), tc.query)
	}
	require.Equal(t, http.StatusBadRequest, getJSON(t, server, "/contents?orderBy=random", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server, "/contents?direction=sideways", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server, "/contents?first=-1", nil))
}

func TestGetContentWithLikers(t *testing.T) {
	server := newTestAPI(t)
	var detail struct {
		ContentID       uint64 `json:"contentId"`
		LikerRewardPool string `json:"likerRewardPool"`
		Likes           []Like `json:"likes"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, server, "/contents/0", &detail))
	require.Equal(t, "50", detail.LikerRewardPool)
	require.Len(t, detail.Likes, 2)
	require.Equal(t, bobAddr.Hex(), detail.Likes[0].Liker)
	require.EqualValues(t, 1, detail.Likes[0].LikeIndex)
	require.Equal(t, carolAddr.Hex(), detail.Likes[1].Liker)

	require.Equal(t, http.StatusNotFound, getJSON(t, server, "/contents/42", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server, "/contents/abc", nil))
}

func TestUserRoutes(t *testing.T) {
	server := newTestAPI(t)
	alice := strings.ToLower(aliceAddr.Hex())

	var user User
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/"+alice, &user))
	require.Equal(t, aliceAddr.Hex(), user.Address)
	require.Equal(t, "140", user.TotalEarned)
	require.EqualValues(t, 2, user.ContentsCreated)

	var contents []Content
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/"+alice+"/contents?orderBy=createdAt&direction=desc", &contents))
	require.Equal(t, []uint64{1, 0}, contentIDs(contents))

	var likes []Like
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/"+carolAddr.Hex()+"/likes", &likes))
	require.Len(t, likes, 2)

	var followers []Follow
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/"+alice+"/followers", &followers))
	require.Len(t, followers, 1)
	require.Equal(t, bobAddr.Hex(), followers[0].Follower)

	var following []Follow
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/"+carolAddr.Hex()+"/following", &following))
	require.Empty(t, following)

	var stranger User
	require.Equal(t, http.StatusOK, getJSON(t, server, "/users/0x00000000000000000000000000000000000000dd", &stranger))
	require.Equal(t, "0", stranger.TotalEarned)

	require.Equal(t, http.StatusBadRequest, getJSON(t, server, "/users/not-an-address", nil))
}

func TestPayoutExportEndpoint(t *testing.T) {
	server := newTestAPI(t)
	res, err := server.Client().Get(server.URL + "/exports/payouts?format=csv")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/csv", res.Header.Get("Content-Type"))
	require.Len(t, res.Header.Get("X-Checksum-SHA256"), 64)

	res2, err := server.Client().Get(server.URL + "/exports/payouts?format=xml")
	require.NoError(t, err)
	res2.Body.Close()
	require.Equal(t, http.StatusBadRequest, res2.StatusCode)
}
