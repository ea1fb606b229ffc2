// Package admin inspects and manages the kernel objects of a namespace.
//
// The topic bus only ever attaches and detaches; permanently removing
// objects is reserved for a designated owner. Manager provides that
// owner's operations: listing, inspection, provisioning from a manifest
// and teardown.
//
// Manifests may be YAML or TOML:
//
//	segments:
//	  - name: imu
//	    size: 64
//	topics: [imu, imu_log]
package admin
