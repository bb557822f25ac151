package domain

// DefaultKeyPrefix namespaces every key written to the backing store.
const DefaultKeyPrefix = "docembed:"
