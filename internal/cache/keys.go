package cache

import "fmt"

// Cache keys are namespaced per entity so write paths can invalidate exactly
// the records they touch.

func ContentKey(hash string) string {
	return fmt.Sprintf("content:%s", hash)
}

func ManifestKey(uri string) string {
	return fmt.Sprintf("manifest:%s", uri)
}

func BindingKey(platform, platformID string) string {
	return fmt.Sprintf("binding:%s:%s", platform, platformID)
}

func VerificationsKey(hash string) string {
	return fmt.Sprintf("verifications:%s", hash)
}
