package dto

// CreateArchivistRequest registers a new archivist identity.
type CreateArchivistRequest struct {
	Username string `json:"username" validate:"required"`
	Bio      string `json:"bio"`
}

// RenameArchivistRequest changes an archivist's username.
type RenameArchivistRequest struct {
	NewUsername string `json:"newUsername" validate:"required"`
}

// UpdateBioRequest replaces an archivist's bio.
type UpdateBioRequest struct {
	Bio string `json:"bio"`
}

// CreateArchiveRequest creates a named archive owned by the archivist.
type CreateArchiveRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Archivist   string `json:"archivist" validate:"required"`
}

// RenameArchiveRequest renames an archive.
type RenameArchiveRequest struct {
	NewName   string `json:"newName" validate:"required"`
	Archivist string `json:"archivist" validate:"required"`
}

// ChangeDescriptionRequest replaces an archive's description.
type ChangeDescriptionRequest struct {
	Description string `json:"description"`
	Archivist   string `json:"archivist" validate:"required"`
}

// ActorRequest carries only the acting archivist, used by delete endpoints.
type ActorRequest struct {
	Archivist string `json:"archivist" validate:"required"`
}

// RenameDocumentRequest changes a document's display name.
type RenameDocumentRequest struct {
	NewName   string `json:"newName" validate:"required"`
	Archivist string `json:"archivist" validate:"required"`
}

// CreateRecordRequest creates an empty record in an archive.
type CreateRecordRequest struct {
	Name    string `json:"name" validate:"required"`
	Creator string `json:"creator" validate:"required"`
}

// AddDocumentRequest appends a document hash to a record.
type AddDocumentRequest struct {
	Document  string `json:"document" validate:"required"`
	Archivist string `json:"archivist" validate:"required"`
}

// ReorderRequest moves the element at Index to NewIndex using array-splice
// semantics: remove at Index, then insert into the shortened sequence.
type ReorderRequest struct {
	Index     int    `json:"index"`
	NewIndex  int    `json:"newIndex"`
	Archivist string `json:"archivist" validate:"required"`
}

// TagRequest adds a tag to a record.
type TagRequest struct {
	Tag       string `json:"tag" validate:"required"`
	Archivist string `json:"archivist" validate:"required"`
}
