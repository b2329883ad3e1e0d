// Generates a self-signed X.509 certificate (valid for 10 years) and
// corresponding key for the TLS listener. Point tls.certificate_file and
// tls.key_file in the server config at the generated files.
//
// Usage:
//
//	certgen [-ip <addresses>]
//
// The tool will prompt for the IP addresses clients will use to reach the
// server if none are passed on the command line.
package main

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"
)

const (
	certificateFilename = "cert.pem"
	privateKeyFilename  = "key.pem"
)

var ip = flag.String("ip", "", "Server's external IP or comma-separated IPs")

func main() {
	flag.Parse()

	serverIPs := make([]string, 0)
	if *ip == "" {
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("server's external IP: ")
			scanner.Scan()
			if scanner.Text() == "" {
				break
			}
			serverIPs = append(serverIPs, scanner.Text())
		}
	} else {
		serverIPs = strings.Split(*ip, ",")
	}

	template, err := createX509Template(serverIPs)
	if err != nil {
		fmt.Println("error creating X.509 template:", err)
		os.Exit(1)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		fmt.Printf("error generating RSA key: %s\n", err)
		os.Exit(1)
	}

	if err := writeCertificateFile(template, privateKey); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := writePrivateKeyFile(privateKey); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf(
		"\nDone! Place %s and %s next to the server's config file (or wherever\n"+
			"tls.certificate_file and tls.key_file point) and restart the server.\n",
		certificateFilename,
		privateKeyFilename,
	)
}

func createX509Template(serverIPs []string) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, address := range serverIPs {
		parsed := net.ParseIP(address)
		if parsed == nil {
			return nil, fmt.Errorf("%v is not a valid IP address", address)
		}
		ips = append(ips, parsed)
	}

	return &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"FireNET Game Backend"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour * 24 * 365 * 10),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           ips,
	}, nil
}

func writeCertificateFile(template *x509.Certificate, privateKey *rsa.PrivateKey) error {
	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return err
	}

	certOut, err := os.Create(certificateFilename)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", certificateFilename, err)
	}
	defer certOut.Close()

	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certBytes}); err != nil {
		return fmt.Errorf("error encoding %s: %w", certificateFilename, err)
	}

	fmt.Printf("wrote %s\n", certificateFilename)
	return nil
}

func writePrivateKeyFile(privateKey *rsa.PrivateKey) error {
	keyOut, err := os.OpenFile(privateKeyFilename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", privateKeyFilename, err)
	}
	defer keyOut.Close()

	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	if err := pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return fmt.Errorf("error encoding %s: %w", privateKeyFilename, err)
	}

	fmt.Printf("wrote %s\n", privateKeyFilename)
	return nil
}
