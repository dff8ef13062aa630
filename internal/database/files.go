// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/portico/internal/database/query"
	"github.com/tomtom215/portico/internal/models"
)

func scanFolder(r rowScanner) (*models.Folder, error) {
	var f models.Folder
	var parent sql.NullInt64
	if err := r.Scan(&f.ID, &f.Name, &parent, &f.CreatedBy, &f.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	f.ParentID = nullInt(parent)
	return &f, nil
}

// CreateFolder inserts f under its parent (nil for the root). Names are
// unique within a parent.
func (db *DB) CreateFolder(ctx context.Context, f *models.Folder) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkFolderPlacement(ctx, tx, 0, f.Name, f.ParentID); err != nil {
			return err
		}
		f.CreatedAt = db.now()
		id, err := db.insert(ctx, tx, "folders",
			`INSERT INTO folders (name, parent_id, created_by, created_at) VALUES (?, ?, ?, ?)`,
			f.Name, intArg(f.ParentID), f.CreatedBy, f.CreatedAt)
		if err != nil {
			return err
		}
		f.ID = id
		return nil
	})
}

// GetFolder returns a folder by id.
func (db *DB) GetFolder(ctx context.Context, id int64) (*models.Folder, error) {
	return scanFolder(db.queryRow(ctx, db.conn,
		`SELECT id, name, parent_id, created_by, created_at FROM folders WHERE id = ?`, id))
}

// ListFolders returns every folder ordered by name; clients build the tree.
func (db *DB) ListFolders(ctx context.Context) ([]models.Folder, error) {
	rows, err := db.query(ctx, db.conn, "folders",
		`SELECT id, name, parent_id, created_by, created_at FROM folders ORDER BY LOWER(name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// UpdateFolder renames and/or moves a folder. A folder cannot be moved
// below itself.
func (db *DB) UpdateFolder(ctx context.Context, id int64, name string, parentID *int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkFolderPlacement(ctx, tx, id, name, parentID); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "folders", ErrNotFound,
			`UPDATE folders SET name = ?, parent_id = ? WHERE id = ?`, name, intArg(parentID), id)
	})
}

// checkFolderPlacement verifies the parent exists, is not id or one of its
// descendants, and has no sibling called name.
func (db *DB) checkFolderPlacement(ctx context.Context, tx *sql.Tx, id int64, name string, parentID *int64) error {
	if parentID != nil {
		cur := *parentID
		for depth := 0; ; depth++ {
			if id != 0 && cur == id {
				return fmt.Errorf("%w: folder cannot be moved into itself", ErrConflict)
			}
			var next sql.NullInt64
			if err := db.queryRow(ctx, tx, `SELECT parent_id FROM folders WHERE id = ?`, cur).Scan(&next); err != nil {
				if isNotFound(notFound(err)) {
					return fmt.Errorf("%w: parent folder %d", ErrNotFound, cur)
				}
				return err
			}
			if !next.Valid || depth > 256 {
				break
			}
			cur = next.Int64
		}
	}

	stmt := `SELECT COUNT(*) FROM folders WHERE LOWER(name) = LOWER(?) AND id <> ? AND parent_id IS NULL`
	args := []any{name, id}
	if parentID != nil {
		stmt = `SELECT COUNT(*) FROM folders WHERE LOWER(name) = LOWER(?) AND id <> ? AND parent_id = ?`
		args = append(args, *parentID)
	}
	var n int
	if err := db.queryRow(ctx, tx, stmt, args...).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: folder %q already exists here", ErrDuplicate, name)
	}
	return nil
}

// DeleteFolder removes an empty folder. Folders with files or subfolders
// yield ErrNotEmpty.
func (db *DB) DeleteFolder(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		var children int
		if err := db.queryRow(ctx, tx,
			`SELECT (SELECT COUNT(*) FROM folders WHERE parent_id = ?) + (SELECT COUNT(*) FROM files WHERE folder_id = ?)`,
			id, id).Scan(&children); err != nil {
			return err
		}
		if children > 0 {
			return ErrNotEmpty
		}
		return db.execOne(ctx, tx, "folders", ErrNotFound, `DELETE FROM folders WHERE id = ?`, id)
	})
}

const fileColumns = `id, folder_id, original_name, stored_name, mime_type, size_bytes, sha256, thumbnail_name, uploaded_by, created_at`

func scanFile(r rowScanner) (*models.File, error) {
	var f models.File
	var folder sql.NullInt64
	if err := r.Scan(&f.ID, &folder, &f.OriginalName, &f.StoredName, &f.MimeType, &f.SizeBytes,
		&f.SHA256, &f.ThumbnailName, &f.UploadedBy, &f.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	f.FolderID = nullInt(folder)
	f.HasThumbnail = f.ThumbnailName != ""
	return &f, nil
}

// CreateFile records an uploaded blob.
func (db *DB) CreateFile(ctx context.Context, f *models.File) error {
	if f.FolderID != nil {
		if _, err := db.GetFolder(ctx, *f.FolderID); err != nil {
			return fmt.Errorf("folder %d: %w", *f.FolderID, err)
		}
	}
	f.CreatedAt = db.now()
	id, err := db.insert(ctx, db.conn, "files",
		`INSERT INTO files (folder_id, original_name, stored_name, mime_type, size_bytes, sha256, thumbnail_name, uploaded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intArg(f.FolderID), f.OriginalName, f.StoredName, f.MimeType, f.SizeBytes, f.SHA256,
		f.ThumbnailName, f.UploadedBy, f.CreatedAt)
	if err != nil {
		return err
	}
	f.ID = id
	f.HasThumbnail = f.ThumbnailName != ""
	return nil
}

// GetFile returns file metadata by id.
func (db *DB) GetFile(ctx context.Context, id int64) (*models.File, error) {
	return scanFile(db.queryRow(ctx, db.conn, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
}

// ListFiles lists the files in a folder (nil for the root) by name.
func (db *DB) ListFiles(ctx context.Context, folderID *int64, opts models.ListOptions) (*models.Page[models.File], error) {
	limit, offset := clampPage(opts.Limit, opts.Offset, db.pageDefault(), db.pageMax())
	wb := query.NewWhereBuilder()
	if folderID != nil {
		wb.AddClause("folder_id = ?", *folderID)
	} else {
		wb.AddClause("folder_id IS NULL")
	}
	where, args := wb.AddSearch(opts.Search, "LOWER(original_name)").BuildWithPrefix()

	page := &models.Page[models.File]{Items: []models.File{}, Limit: limit, Offset: offset}
	if err := db.queryRow(ctx, db.conn, `SELECT COUNT(*) FROM files`+where, args...).Scan(&page.Total); err != nil {
		return nil, err
	}
	rows, err := db.query(ctx, db.conn, "files",
		`SELECT `+fileColumns+` FROM files`+where+` ORDER BY LOWER(original_name), id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *f)
	}
	return page, rows.Err()
}

// UpdateFile renames and/or moves a file.
func (db *DB) UpdateFile(ctx context.Context, id int64, name string, folderID *int64) error {
	if folderID != nil {
		if _, err := db.GetFolder(ctx, *folderID); err != nil {
			return fmt.Errorf("folder %d: %w", *folderID, err)
		}
	}
	return db.execOne(ctx, db.conn, "files", ErrNotFound,
		`UPDATE files SET original_name = ?, folder_id = ? WHERE id = ?`, name, intArg(folderID), id)
}

// DeleteFile removes the metadata row and returns it so the caller can
// remove the blob. Posts that showed the file lose their image.
func (db *DB) DeleteFile(ctx context.Context, id int64) (*models.File, error) {
	var f *models.File
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		f, err = scanFile(db.queryRow(ctx, tx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if _, err := db.exec(ctx, tx, "posts", `UPDATE posts SET image_file_id = NULL WHERE image_file_id = ?`, id); err != nil {
			return err
		}
		return db.execOne(ctx, tx, "files", ErrNotFound, `DELETE FROM files WHERE id = ?`, id)
	})
	return f, err
}

// FileReferenced reports whether stored is still recorded, used by the
// storage sweeper to find orphaned blobs.
func (db *DB) FileReferenced(ctx context.Context, stored string) (bool, error) {
	var n int
	err := db.queryRow(ctx, db.conn,
		`SELECT COUNT(*) FROM files WHERE stored_name = ? OR thumbnail_name = ?`, stored, stored).Scan(&n)
	return n > 0, err
}
