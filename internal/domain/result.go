package domain

// DeployResult is the terminal record of a deployment attempt. Immutable.
type DeployResult struct {
	Success          bool
	RemotePath       string
	BytesTransferred uint64
}
