package configstore

// NotFoundError is returned when a requested entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found: " + e.Key
}
