// Package s3 provides an AWS S3 implementation of blobstore.BlobStore.
//
// The Head version token is the object's ETag, which is what the manifest
// freshness probe compares between invocations.
package s3
