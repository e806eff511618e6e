// Package uploader copies fetched files into object storage.
//
// Storage is reached through gocloud.dev/blob, so any registered scheme
// works: gs (default), s3, file and mem. The object key is the local
// file's basename and the resulting URI is <scheme>://<bucket>/<basename>.
//
// # Credentials
//
// [CloudResolver] opens the bucket with the ambient identity unless a
// service account JSON file is given, which is supported for gs. Any
// failure to obtain a usable bucket is an [AuthError].
//
// # Retries
//
// Uploads are retried up to Options.Retries attempts with a fixed
// Options.Backoff delay. A PermissionDenied response is wrapped in an
// [AuthError] and returned without further attempts.
package uploader
