/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: appinfo.go
Description: App identity loading. The exploration driver writes an app.json
into its output directory describing the APK it installed; the session reads
it to know which component the home probe must relaunch. A missing or
malformed file degrades to configured defaults with a warning.
*/

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// AppInfoName is the identity file the driver writes into its output directory
const AppInfoName = "app.json"

// AppInfo identifies the app under exploration
type AppInfo struct {
	Package      string `json:"package"`
	MainActivity string `json:"main_activity"`
}

// Component returns the explicit component string for am start -n. A main
// activity that already carries a package path is used as is; bare class
// names get the app package prefixed.
func (a AppInfo) Component() string {
	activity := a.MainActivity
	if !strings.Contains(activity, ".") {
		activity = a.Package + "." + activity
	}
	return a.Package + "/" + activity
}

// LoadAppInfo reads the driver's app identity file from the output directory.
// Failure is not fatal: exploration proceeds with the fallback identity, at
// worst relaunching the wrong component after home probes.
func LoadAppInfo(outputDir string, fallback AppInfo, logger *logrus.Logger) AppInfo {
	path := filepath.Join(outputDir, AppInfoName)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("app identity unavailable, using configured defaults: %v", err)
		return fallback
	}

	var info AppInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Warnf("app identity unreadable, using configured defaults: %v", err)
		return fallback
	}
	if info.Package == "" {
		info.Package = fallback.Package
	}
	if info.MainActivity == "" {
		info.MainActivity = fallback.MainActivity
	}

	logger.WithFields(logrus.Fields{
		"package":  info.Package,
		"activity": info.MainActivity,
	}).Info("App identity loaded")
	return info
}
