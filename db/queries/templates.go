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

package queries

import "text/template"

type Templates struct {
	CreateTreeTable *template.Template
	CreateIndex     *template.Template
	DropTable       *template.Template

	SelectNodes  *template.Template
	InsertNode   *template.Template
	ShiftColumns *template.Template
	DeleteNodes  *template.Template

	CheckPublicationExists *template.Template
	CreatePublication      *template.Template
	DropPublication        *template.Template
	ReplicaIdentityFull    *template.Template
	CheckSlotExists        *template.Template
	DropReplicationSlot    *template.Template
	GetSlotFlushLSN        *template.Template
}

var SQLTemplates = Templates{
	// No CHECK (lft < rgt): the two columns are
	// shifted by separate statements and may cross in between.
	CreateTreeTable: template.Must(template.New("createTreeTable").Parse(`
		CREATE TABLE IF NOT EXISTS {{.Table}} (
			id {{.IDType}},
			lft BIGINT NOT NULL,
			rgt BIGINT NOT NULL,
			scope TEXT{{range .Attributes}},
			{{.Ident}} {{.Type}}{{end}}
		)`),
	),

	CreateIndex: template.Must(template.New("createIndex").Parse(`
		CREATE INDEX IF NOT EXISTS {{.IndexName}} ON {{.Table}} (scope, {{.Column}})
	`)),

	DropTable: template.Must(template.New("dropTable").Parse(`
		DROP TABLE IF EXISTS {{.Table}}
	`)),

	SelectNodes: template.Must(template.New("selectNodes").Parse(`
		SELECT {{.Columns}}
		FROM {{.Table}}
		{{- if .Where}}
		WHERE {{.Where}}
		{{- end}}
		{{- if .OrderBy}}
		ORDER BY {{.OrderBy}}
		{{- end}}
		{{- if .Limit}}
		LIMIT {{.Limit}}
		{{- end}}
	`)),

	InsertNode: template.Must(template.New("insertNode").Parse(`
		INSERT INTO {{.Table}} ({{.Columns}})
		VALUES ({{.Values}})
		RETURNING id
	`)),

	ShiftColumns: template.Must(template.New("shiftColumns").Parse(`
		UPDATE {{.Table}}
		SET {{.Set}}
		{{- if .Where}}
		WHERE {{.Where}}
		{{- end}}
	`)),

	DeleteNodes: template.Must(template.New("deleteNodes").Parse(`
		DELETE FROM {{.Table}}
		{{- if .Where}}
		WHERE {{.Where}}
		{{- end}}
	`)),

	CheckPublicationExists: template.Must(template.New("checkPublicationExists").Parse(`
		SELECT EXISTS (SELECT 1 FROM pg_publication WHERE pubname = $1)
	`)),

	CreatePublication: template.Must(template.New("createPublication").Parse(`
		CREATE PUBLICATION {{.Publication}} FOR TABLE {{.Table}}
	`)),

	DropPublication: template.Must(template.New("dropPublication").Parse(`
		DROP PUBLICATION IF EXISTS {{.Publication}}
	`)),

	// Deletes only carry the replica identity; FULL makes the old scope
	// visible to the watcher.
	ReplicaIdentityFull: template.Must(template.New("replicaIdentityFull").Parse(`
		ALTER TABLE {{.Table}} REPLICA IDENTITY FULL
	`)),

	CheckSlotExists: template.Must(template.New("checkSlotExists").Parse(`
		SELECT EXISTS (SELECT 1 FROM pg_replication_slots WHERE slot_name = $1)
	`)),

	DropReplicationSlot: template.Must(template.New("dropReplicationSlot").Parse(`
		SELECT pg_drop_replication_slot(slot_name)
		FROM pg_replication_slots
		WHERE slot_name = $1
	`)),

	GetSlotFlushLSN: template.Must(template.New("getSlotFlushLSN").Parse(`
		SELECT COALESCE(confirmed_flush_lsn::text, '')
		FROM pg_replication_slots
		WHERE slot_name = $1
	`)),
}
