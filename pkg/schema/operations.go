// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Operation is an S3 API action that is counted per resource.
type Operation string

const (
	OpCreateBucket            Operation = "CreateBucket"
	OpDeleteBucket            Operation = "DeleteBucket"
	OpListBucket              Operation = "ListBucket"
	OpHeadBucket              Operation = "HeadBucket"
	OpGetBucketAcl            Operation = "GetBucketAcl"
	OpPutBucketAcl            Operation = "PutBucketAcl"
	OpGetBucketCors           Operation = "GetBucketCors"
	OpPutBucketCors           Operation = "PutBucketCors"
	OpDeleteBucketCors        Operation = "DeleteBucketCors"
	OpGetBucketWebsite        Operation = "GetBucketWebsite"
	OpPutBucketWebsite        Operation = "PutBucketWebsite"
	OpDeleteBucketWebsite     Operation = "DeleteBucketWebsite"
	OpGetBucketVersioning     Operation = "GetBucketVersioning"
	OpPutBucketVersioning     Operation = "PutBucketVersioning"
	OpGetObject               Operation = "GetObject"
	OpHeadObject              Operation = "HeadObject"
	OpPutObject               Operation = "PutObject"
	OpCopyObject              Operation = "CopyObject"
	OpDeleteObject            Operation = "DeleteObject"
	OpMultiObjectDelete       Operation = "MultiObjectDelete"
	OpGetObjectAcl            Operation = "GetObjectAcl"
	OpPutObjectAcl            Operation = "PutObjectAcl"
	OpGetObjectTagging        Operation = "GetObjectTagging"
	OpPutObjectTagging        Operation = "PutObjectTagging"
	OpDeleteObjectTagging     Operation = "DeleteObjectTagging"
	OpInitiateMultipartUpload Operation = "InitiateMultipartUpload"
	OpUploadPart              Operation = "UploadPart"
	OpUploadPartCopy          Operation = "UploadPartCopy"
	OpCompleteMultipartUpload Operation = "CompleteMultipartUpload"
	OpAbortMultipartUpload    Operation = "AbortMultipartUpload"
	OpListMultipartUploads    Operation = "ListMultipartUploads"
	OpListParts               Operation = "ListParts"
)

// Operations lists every counted operation in a stable order.
var Operations = []Operation{
	OpCreateBucket,
	OpDeleteBucket,
	OpListBucket,
	OpHeadBucket,
	OpGetBucketAcl,
	OpPutBucketAcl,
	OpGetBucketCors,
	OpPutBucketCors,
	OpDeleteBucketCors,
	OpGetBucketWebsite,
	OpPutBucketWebsite,
	OpDeleteBucketWebsite,
	OpGetBucketVersioning,
	OpPutBucketVersioning,
	OpGetObject,
	OpHeadObject,
	OpPutObject,
	OpCopyObject,
	OpDeleteObject,
	OpMultiObjectDelete,
	OpGetObjectAcl,
	OpPutObjectAcl,
	OpGetObjectTagging,
	OpPutObjectTagging,
	OpDeleteObjectTagging,
	OpInitiateMultipartUpload,
	OpUploadPart,
	OpUploadPartCopy,
	OpCompleteMultipartUpload,
	OpAbortMultipartUpload,
	OpListMultipartUploads,
	OpListParts,
}

var knownOperations = func() map[Operation]struct{} {
	m := make(map[Operation]struct{}, len(Operations))
	for _, op := range Operations {
		m[op] = struct{}{}
	}
	return m
}()

// Valid reports whether op is a counted operation.
func (op Operation) Valid() bool {
	_, ok := knownOperations[op]
	return ok
}
