package data

/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Uniqueness of layer names and legend titles is checked in Go,
// since DuckDB rejects updates that touch indexed columns of a row.
var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS legend_semantics (
    id          BIGINT PRIMARY KEY,
    name        VARCHAR NOT NULL,
    description VARCHAR,
    keyword     VARCHAR
)`,
	`CREATE TABLE IF NOT EXISTS legends (
    id          BIGINT PRIMARY KEY,
    title       VARCHAR NOT NULL,
    description VARCHAR
)`,
	`CREATE TABLE IF NOT EXISTS legend_entries (
    id           BIGINT NOT NULL,
    legend_id    BIGINT NOT NULL,
    position     INTEGER NOT NULL,
    semantics_id BIGINT,
    expression   VARCHAR NOT NULL,
    color        VARCHAR NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS raster_layers (
    id          BIGINT PRIMARY KEY,
    name        VARCHAR NOT NULL,
    description VARCHAR,
    datatype    VARCHAR NOT NULL DEFAULT 'co',
    srid        INTEGER,
    nodata      VARCHAR,
    raster_file VARCHAR NOT NULL,
    legend_id   BIGINT
)`,
}

const sqlLayerColumns = `id, name, description, datatype, srid, nodata, raster_file, legend_id`

const sqlLayers = `SELECT ` + sqlLayerColumns + ` FROM raster_layers ORDER BY name`

const sqlLayerByName = `SELECT ` + sqlLayerColumns + ` FROM raster_layers WHERE name = ? LIMIT 1`

const sqlLegendByID = `SELECT id, title, description FROM legends WHERE id = ?`

const sqlLegendByTitle = `SELECT id, title, description FROM legends
WHERE lower(trim(title)) = lower(trim(?))
ORDER BY id
LIMIT 1`

const sqlLegendEntries = `SELECT e.id, e.expression, e.color,
       s.id, s.name, s.description, s.keyword
FROM legend_entries e
LEFT JOIN legend_semantics s ON s.id = e.semantics_id
WHERE e.legend_id = ?
ORDER BY e.position`

const sqlLegendTitleInUse = `SELECT COUNT(*) FROM legends
WHERE lower(trim(title)) = lower(trim(?)) AND id <> ?`

const sqlLayerNameInUse = `SELECT COUNT(*) FROM raster_layers WHERE name = ? AND id <> ?`

const sqlFmtNextID = `SELECT COALESCE(MAX(id), 0) + 1 FROM %s`

const sqlSemanticsByName = `SELECT id FROM legend_semantics WHERE name = ? LIMIT 1`

const sqlInsertSemantics = `INSERT INTO legend_semantics (id, name, description, keyword) VALUES (?, ?, ?, ?)`

const sqlInsertLegend = `INSERT INTO legends (id, title, description) VALUES (?, ?, ?)`

const sqlUpdateLegend = `UPDATE legends SET title = ?, description = ? WHERE id = ?`

const sqlLegendExists = `SELECT COUNT(*) FROM legends WHERE id = ?`

const sqlDeleteLegendEntries = `DELETE FROM legend_entries WHERE legend_id = ?`

const sqlInsertLegendEntry = `INSERT INTO legend_entries (id, legend_id, position, semantics_id, expression, color)
VALUES (?, ?, ?, ?, ?, ?)`

const sqlLayerExists = `SELECT COUNT(*) FROM raster_layers WHERE id = ?`

const sqlInsertLayer = `INSERT INTO raster_layers (` + sqlLayerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const sqlUpdateLayer = `UPDATE raster_layers
SET name = ?, description = ?, datatype = ?, srid = ?, nodata = ?, raster_file = ?, legend_id = ?
WHERE id = ?`
