package model

import "fmt"

// Product is the name used in storage keys and backup file names.
const Product = "mera"

// BundleKey is the storage key holding the live bundle in both stores.
const BundleKey = Product + ".progress.json"

// Version is a semantic version.
type Version struct {
	Major int `yaml:"major" json:"major"`
	Minor int `yaml:"minor" json:"minor"`
	Patch int `yaml:"patch" json:"patch"`
}

// RuntimeVersion is the version of this runtime.
var RuntimeVersion = Version{Major: 1, Minor: 0, Patch: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
