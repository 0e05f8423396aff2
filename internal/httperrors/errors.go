// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors provides user-friendly error handling for HTTP requests
// made against the QMS backend.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	qerrors "qms/cli/internal/errors"
	"qms/cli/internal/httpclient"
)

// FormatNetworkError converts technical HTTP/network errors into user-friendly messages.
// It detects API status errors and common transport failures (timeout, DNS,
// connection refused, TLS) and displays troubleshooting information.
// The returned error keeps err in its chain.
func FormatNetworkError(err error, context string) error {
	if err == nil {
		return nil
	}

	displayErrorMessage(err, context)

	return fmt.Errorf("%s: %w", context, err)
}

// failure is the class of error a message is chosen for.
type failure int

const (
	failureGeneric failure = iota
	failureStatus
	failureMalformed
	failureStorage
	failureTimeout
	failureDNS
	failureRefused
	failureTLS
)

// classify picks the failure class for err. API status errors are matched on
// their code only; the remaining checks apply to transport errors.
func classify(err error) failure {
	if httpclient.StatusCode(err) != 0 {
		return failureStatus
	}
	switch qerrors.KindOf(err) {
	case qerrors.MalformedResponse:
		return failureMalformed
	case qerrors.StorageFailed:
		return failureStorage
	}
	switch {
	case isTimeoutError(err):
		return failureTimeout
	case isDNSError(err):
		return failureDNS
	case isConnectionRefusedError(err):
		return failureRefused
	case isSSLError(err):
		return failureTLS
	}
	return failureGeneric
}

// displayErrorMessage shows a formatted error message to the user based on error type.
func displayErrorMessage(err error, context string) {
	switch classify(err) {
	case failureStatus:
		showStatusError(context, httpclient.StatusCode(err))
	case failureMalformed:
		pterm.Printf("❓ Unexpected response from the QMS API while %s\n", context)
		pterm.Println("   The server answered but not in the expected format. Check that the endpoint is a QMS API.")
		pterm.Println()
	case failureStorage:
		pterm.Printf("💾 Could not save the session while %s\n", context)
		pterm.Println("   Check access to the OS keychain, or retry with --storage file.")
		pterm.Println()
	case failureTimeout:
		showTimeoutError(context)
	case failureDNS:
		showDNSError(context)
	case failureRefused:
		showConnectionRefusedError(context)
	case failureTLS:
		showSSLError(context)
	default:
		showGenericError(context, err.Error())
	}
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	// Check for timeout in error message
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	// Check for net.Error with Timeout()
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED)
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// showTimeoutError displays a user-friendly timeout error message.
func showTimeoutError(context string) {
	pterm.Printf("⏱️  Connection timeout while %s\n", context)
	pterm.Println()
	pterm.Println("The server took too long to respond. This could mean:")
	pterm.Println("  • Slow internet connection")
	pterm.Println("  • Server is under heavy load")
	pterm.Println("  • Network firewall is blocking the connection")
	pterm.Println()
	pterm.Println("Please try again in a few moments.")
	pterm.Println()
}

// showDNSError displays a user-friendly DNS error message.
func showDNSError(context string) {
	pterm.Printf("🌐 Cannot resolve server address while %s\n", context)
	pterm.Println()
	pterm.Println("Unable to look up the QMS API host. Please check:")
	pterm.Println("  • Your internet connection is working")
	pterm.Println("  • DNS settings are correct")
	pterm.Println("  • REACT_APP_API_URL names a host, not a full URL")
	pterm.Println()
}

// showConnectionRefusedError displays a user-friendly connection refused error message.
func showConnectionRefusedError(context string) {
	pterm.Printf("🚫 Connection refused while %s\n", context)
	pterm.Println()
	pterm.Println("The server is not accepting connections. This could mean:")
	pterm.Println("  • The service is temporarily down")
	pterm.Println("  • Firewall is blocking the connection")
	pterm.Println("  • Wrong server address or port (REACT_APP_API_URL / REACT_APP_API_PORT)")
	pterm.Println()
	pterm.Println("Run 'qms status' to see which endpoint the CLI is using.")
	pterm.Println()
}

// showSSLError displays a user-friendly SSL/TLS error message.
func showSSLError(context string) {
	pterm.Printf("🔒 Secure connection failed while %s\n", context)
	pterm.Println()
	pterm.Println("Cannot establish a secure HTTPS connection. This could mean:")
	pterm.Println("  • SSL/TLS certificate issue")
	pterm.Println("  • Network proxy interfering with HTTPS")
	pterm.Println("  • System clock is incorrect")
	pterm.Println()
	pterm.Println("Try:")
	pterm.Println("  • Check your system date and time")
	pterm.Println("  • Verify network proxy settings")
	pterm.Println()
}

// showServerError displays a user-friendly server error message.
func showServerError(context string, errDetails string) {
	pterm.Printf("⚠️  Server error while %s\n", context)
	pterm.Println()
	pterm.Println("The QMS server encountered an internal error.")
	pterm.Println("  • Please try again in a few minutes")
	pterm.Println("  • If it persists, contact your QMS administrator")
	pterm.Println()
	pterm.Debug.Printf("Technical details: %s\n", errDetails)
}

// showStatusError explains a non-2xx response from the API.
func showStatusError(context string, code int) {
	switch {
	case code == 401:
		pterm.Printf("🔒 Not authorized while %s\n", context)
		pterm.Println()
		pterm.Println("Your session is missing or has expired and has been cleared.")
		pterm.Println("Run 'qms login' to sign in again.")
	case code == 403:
		pterm.Printf("⛔ Permission denied while %s\n", context)
		pterm.Println()
		pterm.Println("Your role does not allow this operation.")
	case code == 404:
		pterm.Printf("🔍 Not found while %s\n", context)
	case code >= 500:
		showServerError(context, fmt.Sprintf("status %d", code))
		return
	default:
		pterm.Printf("❌ Request rejected (status %d) while %s\n", code, context)
	}
	pterm.Println()
}

// showGenericError displays a generic error message for unrecognized errors.
func showGenericError(context string, errDetails string) {
	pterm.Printf("❌ Cannot reach the QMS API while %s\n", context)
	pterm.Println()
	pterm.Println("Please check:")
	pterm.Println("  • Your network connection")
	pterm.Println("  • Whether the API host is accessible from your network")
	pterm.Println("  • QMS_ENV: production uses HTTPS, anything else plain HTTP")
	pterm.Println()

	// Show abbreviated error details for debugging
	if errDetails != "" {
		shortErr := errDetails
		if len(shortErr) > 100 {
			shortErr = shortErr[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", shortErr)
		pterm.Println()
	}
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
