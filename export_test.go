package authgate

// ResetBackgroundHandler forgets the installed background handler.
func ResetBackgroundHandler() {
	backgroundHandler.mu.Lock()
	defer backgroundHandler.mu.Unlock()
	backgroundHandler.installed = false
}
