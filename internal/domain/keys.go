package domain

// KeyPrefix namespaces every database key written by this service.
const KeyPrefix = "lexibase:"
