package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Tx is a scoped store transaction handed to Update and View callbacks
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// FindNode returns the node carrying label whose property equals value,
// or nil if there is none
func (t *Tx) FindNode(label, property string, value any) (*Node, error) {
	kind, encoded, err := encodeValue(value)
	if err != nil {
		return nil, err
	}

	var nodeID int64
	err = t.tx.QueryRowContext(t.ctx, `
		SELECT p.node_id
		FROM node_properties p
		JOIN node_labels l ON l.node_id = p.node_id AND l.label = ?
		WHERE p.name = ? AND p.kind = ? AND p.value IS ?
		ORDER BY p.node_id
		LIMIT 1
	`, label, property, kind, encoded).Scan(&nodeID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find :%s(%s): %w", label, property, err)
	}

	return t.NodeByID(nodeID)
}

// NodeByID loads a node with its labels and properties, nil if absent
func (t *Tx) NodeByID(id int64) (*Node, error) {
	var exists int
	err := t.tx.QueryRowContext(t.ctx, "SELECT 1 FROM nodes WHERE node_id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %d: %w", id, err)
	}

	nodes, err := t.loadNodes(
		"SELECT node_id, label FROM node_labels WHERE node_id = ?",
		"SELECT node_id, name, kind, value FROM node_properties WHERE node_id = ?",
		id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return &Node{ID: id, Properties: map[string]any{}}, nil
	}
	return nodes[0], nil
}

// NodesByLabel loads every node carrying label, ordered by id
func (t *Tx) NodesByLabel(label string) ([]*Node, error) {
	return t.loadNodes(`
		SELECT l2.node_id, l2.label
		FROM node_labels l2
		JOIN node_labels l ON l.node_id = l2.node_id AND l.label = ?
	`, `
		SELECT p.node_id, p.name, p.kind, p.value
		FROM node_properties p
		JOIN node_labels l ON l.node_id = p.node_id AND l.label = ?
	`, label)
}

// loadNodes assembles nodes from a labels query and a properties query sharing one argument
func (t *Tx) loadNodes(labelsQuery, propsQuery string, arg any) ([]*Node, error) {
	byID := make(map[int64]*Node)
	get := func(id int64) *Node {
		n, ok := byID[id]
		if !ok {
			n = &Node{ID: id, Properties: make(map[string]any)}
			byID[id] = n
		}
		return n
	}

	rows, err := t.tx.QueryContext(t.ctx, labelsQuery, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		n := get(id)
		n.Labels = append(n.Labels, label)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}
	rows.Close()

	rows, err = t.tx.QueryContext(t.ctx, propsQuery, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, kind string
		var value sql.NullString
		if err := rows.Scan(&id, &name, &kind, &value); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		decoded, err := decodeValue(kind, value)
		if err != nil {
			return nil, fmt.Errorf("node %d property %s: %w", id, name, err)
		}
		get(id).Properties[name] = decoded
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating properties: %w", err)
	}

	nodes := make([]*Node, 0, len(byID))
	for _, n := range byID {
		sort.Strings(n.Labels)
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

// CreateNode creates a node carrying the given labels
func (t *Tx) CreateNode(labels ...string) (*Node, error) {
	res, err := t.tx.ExecContext(t.ctx, "INSERT INTO nodes DEFAULT VALUES")
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read node id: %w", err)
	}

	node := &Node{ID: id, Properties: make(map[string]any)}
	for _, label := range labels {
		if err := t.AddLabel(id, label); err != nil {
			return nil, err
		}
		node.Labels = append(node.Labels, label)
	}
	return node, nil
}

// AddLabel tags a node with label. Adding a label that is already present is a no-op.
// Unique constraints of the label are enforced against the node's current properties.
func (t *Tx) AddLabel(nodeID int64, label string) error {
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO node_labels (node_id, label) VALUES (?, ?)
		ON CONFLICT(node_id, label) DO NOTHING
	`, nodeID, label)
	if err != nil {
		return fmt.Errorf("failed to add label %s to node %d: %w", label, nodeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO unique_keys (label, property, value, node_id)
		SELECT c.label, c.property, p.kind || ':' || COALESCE(p.value, ''), p.node_id
		FROM schema_constraints c
		JOIN node_properties p ON p.name = c.property
		WHERE c.label = ? AND p.node_id = ? AND p.kind != 'null'
	`, label, nodeID)
	return mapConstraintError(err, fmt.Sprintf("label %s on node %d", label, nodeID))
}

// SetProperty sets (or overwrites) a node property, enforcing unique
// constraints of the node's labels
func (t *Tx) SetProperty(nodeID int64, name string, value any) error {
	kind, encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO node_properties (node_id, name, kind, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id, name) DO UPDATE SET
			kind = excluded.kind,
			value = excluded.value
	`, nodeID, name, kind, encoded)
	if err != nil {
		return fmt.Errorf("failed to set property %s on node %d: %w", name, nodeID, err)
	}

	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM unique_keys WHERE node_id = ? AND property = ?", nodeID, name); err != nil {
		return fmt.Errorf("failed to clear unique keys of node %d: %w", nodeID, err)
	}
	if kind == kindNull {
		return nil
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO unique_keys (label, property, value, node_id)
		SELECT l.label, c.property, ?, l.node_id
		FROM node_labels l
		JOIN schema_constraints c ON c.label = l.label AND c.property = ?
		WHERE l.node_id = ?
	`, uniqueValue(kind, encoded), name, nodeID)
	return mapConstraintError(err, fmt.Sprintf("property %s=%v on node %d", name, value, nodeID))
}

// SetProperties sets several properties in a stable (sorted) order
func (t *Tx) SetProperties(nodeID int64, props map[string]any) error {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := t.SetProperty(nodeID, name, props[name]); err != nil {
			return err
		}
	}
	return nil
}

// LabelsInUse returns the labels carried by at least one node
func (t *Tx) LabelsInUse() ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, "SELECT DISTINCT label FROM node_labels ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("failed to list labels in use: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// CreateRelationship creates a directed relationship with optional properties
func (t *Tx) CreateRelationship(fromID, toID int64, relType string, props map[string]any) (*Relationship, error) {
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO relationships (rel_type, from_node_id, to_node_id) VALUES (?, ?, ?)
	`, relType, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s relationship %d->%d: %w", relType, fromID, toID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read relationship id: %w", err)
	}

	rel := &Relationship{ID: id, Type: relType, FromID: fromID, ToID: toID, Properties: make(map[string]any)}
	for name, value := range props {
		if err := t.SetRelationshipProperty(rel, name, value); err != nil {
			return nil, err
		}
	}
	return rel, nil
}

// SetRelationshipProperty sets (or overwrites) a relationship property
func (t *Tx) SetRelationshipProperty(rel *Relationship, name string, value any) error {
	kind, encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("relationship property %s: %w", name, err)
	}

	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO relationship_properties (rel_id, name, kind, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rel_id, name) DO UPDATE SET
			kind = excluded.kind,
			value = excluded.value
	`, rel.ID, name, kind, encoded)
	if err != nil {
		return fmt.Errorf("failed to set property %s on relationship %d: %w", name, rel.ID, err)
	}

	decoded, _ := decodeValue(kind, encoded)
	rel.Properties[name] = decoded
	return nil
}

// FindRelationship returns the first relationship of relType from fromID to toID, or nil
func (t *Tx) FindRelationship(fromID, toID int64, relType string) (*Relationship, error) {
	rels, err := t.queryRelationships(`
		SELECT rel_id, rel_type, from_node_id, to_node_id FROM relationships
		WHERE from_node_id = ? AND to_node_id = ? AND rel_type = ?
		ORDER BY rel_id LIMIT 1
	`, fromID, toID, relType)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return rels[0], nil
}

// Relationships returns the relationships of relType attached to a node
func (t *Tx) Relationships(nodeID int64, relType string, dir Direction) ([]*Relationship, error) {
	var where string
	args := []any{relType, nodeID}
	switch dir {
	case Outgoing:
		where = "from_node_id = ?"
	case Incoming:
		where = "to_node_id = ?"
	default:
		where = "(from_node_id = ? OR to_node_id = ?)"
		args = append(args, nodeID)
	}

	return t.queryRelationships(
		"SELECT rel_id, rel_type, from_node_id, to_node_id FROM relationships WHERE rel_type = ? AND "+where+" ORDER BY rel_id",
		args...)
}

// IndexRelationship adds rel to a named relationship index under key=value
func (t *Tx) IndexRelationship(index, key, value string, rel *Relationship) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO relationship_index (index_name, key, value, rel_id, from_node_id, to_node_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_name, key, value, rel_id) DO NOTHING
	`, index, key, value, rel.ID, rel.FromID, rel.ToID)
	if err != nil {
		return fmt.Errorf("failed to index relationship %d in %s: %w", rel.ID, index, err)
	}
	return nil
}

// FindIndexedRelationship looks up a relationship in a named index by
// key=value and endpoint pair, nil if absent
func (t *Tx) FindIndexedRelationship(index, key, value string, fromID, toID int64) (*Relationship, error) {
	rels, err := t.queryRelationships(`
		SELECT r.rel_id, r.rel_type, r.from_node_id, r.to_node_id
		FROM relationship_index i
		JOIN relationships r ON r.rel_id = i.rel_id
		WHERE i.index_name = ? AND i.key = ? AND i.value = ? AND i.from_node_id = ? AND i.to_node_id = ?
		ORDER BY r.rel_id LIMIT 1
	`, index, key, value, fromID, toID)
	if err != nil || len(rels) == 0 {
		return nil, err
	}
	return rels[0], nil
}

func (t *Tx) queryRelationships(query string, args ...any) ([]*Relationship, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}

	var rels []*Relationship
	for rows.Next() {
		rel := &Relationship{Properties: make(map[string]any)}
		if err := rows.Scan(&rel.ID, &rel.Type, &rel.FromID, &rel.ToID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}
	rows.Close()

	for _, rel := range rels {
		if err := t.loadRelationshipProperties(rel); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

func (t *Tx) loadRelationshipProperties(rel *Relationship) error {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT name, kind, value FROM relationship_properties WHERE rel_id = ?", rel.ID)
	if err != nil {
		return fmt.Errorf("failed to load relationship properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind string
		var value sql.NullString
		if err := rows.Scan(&name, &kind, &value); err != nil {
			return fmt.Errorf("failed to scan relationship property: %w", err)
		}
		decoded, err := decodeValue(kind, value)
		if err != nil {
			return fmt.Errorf("relationship %d property %s: %w", rel.ID, name, err)
		}
		rel.Properties[name] = decoded
	}
	return rows.Err()
}
