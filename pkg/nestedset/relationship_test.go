// ///////////////////////////////////////////////////////////////////////////
//
// # MPTT - Nested-set tree maintenance
//
// Copyright (C) 2023 - 2026, pgEdge (https://www.pgedge.com/)
//
// This software is released under the PostgreSQL License:
// https://opensource.org/license/postgresql
//
// ///////////////////////////////////////////////////////////////////////////

package nestedset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRelationship(t *testing.T) {
	tests := []struct {
		in      string
		want    Relationship
		wantErr bool
	}{
		{in: "first-child-of", want: FirstChildOf},
		{in: "FIRST_CHILD_OF", want: FirstChildOf},
		{in: " child ", want: FirstChildOf},
		{in: "after", want: After},
		{in: "next-sibling-of", want: After},
		{in: "before", wantErr: true},
		{in: "last-child-of", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRelationship(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedRelationship)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRelationshipJSON(t *testing.T) {
	var payload struct {
		Rel Relationship `json:"relationship"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"relationship":"after"}`), &payload))
	require.Equal(t, After, payload.Rel)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"relationship":"after"}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"relationship":"inside"}`), &payload))

	payload.Rel = Relationship(0)
	_, err = json.Marshal(payload)
	require.Error(t, err)
}

func TestThreshold(t *testing.T) {
	ref := Node{Left: 4, Right: 9}

	got, err := FirstChildOf.threshold(ref)
	require.NoError(t, err)
	require.Equal(t, int64(4), got)

	got, err = After.threshold(ref)
	require.NoError(t, err)
	require.Equal(t, int64(9), got)

	_, err = Relationship(3).threshold(ref)
	require.ErrorIs(t, err, ErrUnsupportedRelationship)
}
