package fetch

import "crypto/tls"

// insecureTLSConfig disables peer certificate verification, matching
// the source's requests(verify=False) behavior against heterogeneous
// upstream hosts (§4.3).
func insecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}
